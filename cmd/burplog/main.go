package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/olegiv/burplog-go/internal/config"
	"github.com/olegiv/burplog-go/internal/errors"
	"github.com/olegiv/burplog-go/internal/filter"
	"github.com/olegiv/burplog-go/internal/logging"
	"github.com/olegiv/burplog-go/internal/output"
	"github.com/olegiv/burplog-go/internal/pipeline"
	"github.com/olegiv/burplog-go/internal/storage"
	"github.com/olegiv/burplog-go/internal/traffic"
	"github.com/olegiv/burplog-go/pkg/logger"
)

const (
	exitSuccess = 0
	exitConfig  = 1
	exitIO      = 2
	exitParse   = 3
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exitError carries the process exit code out of the cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		var ee *exitError
		if stderrors.As(err, &ee) {
			return ee.code
		}
		// Usage errors from cobra itself
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	return exitSuccess
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "burplog [flags] <log-file>",
		Short: "Decode, filter and print proxy traffic logs",
		Long: "burplog reads an HTTP traffic log exported from an intercepting proxy (XML or CSV),\n" +
			"decodes the base64 request and response payloads and prints the entries that\n" +
			"match the configured filters.\n\n" +
			"Every flag can also be set through the environment or a .env file\n" +
			"(e.g. STATUS_CODE, FILTER_RESPONSE, JSON_OUTPUT). Flags take precedence.",
		Example: "  burplog --status_code 500 export.xml\n" +
			"  burplog --filter_response 'error,exception' --negative_filter_response healthcheck export.csv\n" +
			"  burplog --json_output --where 'method == \"POST\" && length > 1000' export.xml",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate(versionString())
	config.RegisterFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
			return &exitError{code: exitConfig, err: err}
		}
		cfg.SourcePath = args[0]

		baseLog := logger.New(logger.Config{
			Level:      cfg.LogLevel,
			LogDir:     cfg.LogDir,
			Filename:   logger.DefaultFilename,
			MaxSizeMB:  10,
			MaxBackups: 5,
			Console:    true,
			ConsoleOut: stderr,
		})
		log := logging.NewSecure(baseLog)
		defer func() {
			if err := log.Close(); err != nil {
				_, _ = fmt.Fprintf(stderr, "Failed to close logger: %v\n", err)
			}
		}()

		if code := process(cfg, log, stdout); code != exitSuccess {
			return &exitError{code: code, err: fmt.Errorf("exit status %d", code)}
		}
		return nil
	}

	return cmd
}

func versionString() string {
	s := "burplog " + version + "\n"
	if gitCommit != "unknown" {
		s += "  commit: " + gitCommit + "\n"
	}
	if buildTime != "unknown" {
		s += "  built:  " + buildTime + "\n"
	}
	return s
}

// process runs the pipeline, writes the result and exports it when enabled.
// It returns the process exit code.
func process(cfg *config.Config, log *logging.SecureLogger, stdout io.Writer) int {
	startTime := time.Now()

	f, err := filter.Compile(cfg.FilterSpec())
	if err != nil {
		log.Error().Err(err).Msg("Invalid filter")
		return exitConfig
	}

	p := pipeline.New(
		pipeline.WithFormat(cfg.Format()),
		pipeline.WithDecodeMode(cfg.Decode()),
		pipeline.WithDelimiter(cfg.Delimiter()),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithMaxSizeMB(cfg.MaxLogSizeMB),
		pipeline.WithLogger(log),
	)

	if info, err := p.SourceInfo(cfg.SourcePath); err == nil {
		log.Debug().
			Str("path", cfg.SourcePath).
			Str("size", info["size_human"].(string)).
			Float64("age_hours", info["age_hours"].(float64)).
			Msg("Log file found")
	}

	res, err := p.Process(cfg.SourcePath, f)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.SourcePath).Msg("Failed to process log")
		switch {
		case errors.IsParse(err):
			return exitParse
		default:
			return exitIO
		}
	}

	if err := writeEntries(cfg, res, stdout); err != nil {
		log.Error().Err(err).Msg("Failed to write output")
		return exitIO
	}

	if cfg.ExportEnabled() {
		exportRun(cfg, res, log)
	}

	log.Info().
		Str("path", res.Path).
		Str("format", string(res.Format)).
		Str("total", humanize.Comma(int64(res.Total))).
		Str("matched", humanize.Comma(int64(res.Matched()))).
		Str("filter", f.Spec().String()).
		Dur("duration", time.Since(startTime)).
		Msg("Processed log")

	return exitSuccess
}

func writeEntries(cfg *config.Config, res *pipeline.Result, stdout io.Writer) error {
	if cfg.JSONOutput {
		return output.WriteJSON(stdout, res.Entries)
	}

	color := false
	if f, ok := stdout.(*os.File); ok {
		color = output.ColorEnabled(f, cfg.NoColor)
	}
	return output.NewTextRenderer(stdout, cfg.ResponseOnly, color).Render(res.Entries)
}

// exportRun stores the run in the export database. Failures are logged
// and never change the exit code.
func exportRun(cfg *config.Config, res *pipeline.Result, log *logging.SecureLogger) {
	store, err := storage.New(cfg.ExportDatabasePath, log)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.ExportDatabasePath).Msg("Failed to open export database")
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close export database")
		}
	}()

	run := &storage.Run{
		SourcePath:   res.Path,
		Format:       string(res.Format),
		TotalRecords: res.Total,
		Filter:       cfg.FilterSpec().String(),
	}
	if err := store.SaveRun(run, res.Entries); err != nil {
		log.Warn().Err(err).Msg("Failed to export entries")
		return
	}

	log.Info().Str("run_id", run.ID).Int("entries", run.Matched).Msg("Exported entries")

	if n := countWithCredentials(res.Entries); n > 0 {
		log.Warn().
			Int("entries", n).
			Str("path", cfg.ExportDatabasePath).
			Msg("Export database stores unredacted credentials")
	}

	if cfg.ExportRetentionDays > 0 {
		deleted, err := store.CleanupOldRuns(cfg.ExportRetentionDays)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to cleanup old export runs")
		} else if deleted > 0 {
			log.Info().Int64("deleted", deleted).Int("retention_days", cfg.ExportRetentionDays).Msg("Cleaned up old export runs")
		}
	}

	if stats, err := store.GetStatistics(); err == nil {
		log.Debug().
			Int("total_runs", stats["total_runs"].(int)).
			Int("total_entries", stats["total_entries"].(int)).
			Msgf("Export database status distribution: %v", stats["status_distribution"])
	}
}

// countWithCredentials returns how many entries carry credentials in
// their decoded request or response.
func countWithCredentials(entries []traffic.Entry) int {
	n := 0
	for _, e := range entries {
		if errors.ContainsCredentials(e.DecodedRequest) || errors.ContainsCredentials(e.DecodedResponse) {
			n++
		}
	}
	return n
}
