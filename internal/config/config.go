package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/olegiv/burplog-go/internal/filter"
	"github.com/olegiv/burplog-go/internal/source"
	"github.com/olegiv/burplog-go/internal/tabular"
	"github.com/olegiv/burplog-go/internal/traffic"
)

// Config holds all application configuration
type Config struct {
	// SourcePath is the log file to process (positional argument)
	SourcePath string

	// Filters
	StatusCode             *int
	FilterResponse         string // comma-separated inclusion sub-patterns
	NegativeFilterResponse string // comma-separated exclusion sub-patterns
	FilterExpr             string // optional boolean expression over entry fields

	// Presentation
	ResponseOnly bool
	JSONOutput   bool
	NoColor      bool

	// Reading
	InputFormat  string // auto, markup/xml, tabular/csv
	CSVDelimiter string // empty sniffs the delimiter from the header row
	DecodeMode   string // fallback or lossy
	MaxLogSizeMB int
	Workers      int

	// Export
	ExportDatabasePath  string // empty disables export
	ExportRetentionDays int    // runs older than this are pruned after export; 0 keeps all

	// Application
	LogLevel string
	LogDir   string
}

// flagKeys maps command-line flag names to their configuration keys.
var flagKeys = map[string]string{
	"status_code":              "STATUS_CODE",
	"filter_response":          "FILTER_RESPONSE",
	"negative_filter_response": "NEGATIVE_FILTER_RESPONSE",
	"where":                    "FILTER_EXPR",
	"response_only":            "RESPONSE_ONLY",
	"json_output":              "JSON_OUTPUT",
	"format":                   "INPUT_FORMAT",
	"delimiter":                "CSV_DELIMITER",
	"decode-mode":              "DECODE_MODE",
	"max-size-mb":              "MAX_LOG_SIZE_MB",
	"workers":                  "WORKERS",
	"export-db":                "EXPORT_DATABASE_PATH",
	"export-retention-days":    "EXPORT_RETENTION_DAYS",
	"no-color":                 "NO_COLOR",
	"log-level":                "LOG_LEVEL",
}

// RegisterFlags defines the command-line flags on fs. Flags that are not
// set on the command line fall back to the environment and then to defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("status_code", "", "Only include entries with this HTTP status code")
	fs.String("filter_response", "", "Include entries whose response matches any of these comma-separated patterns")
	fs.String("negative_filter_response", "", "Exclude entries whose response matches any of these comma-separated patterns")
	fs.String("where", "", `Boolean expression over entry fields, e.g. 'method == "POST" && length > 1000'`)
	fs.Bool("response_only", false, "Only print the decoded HTTP responses")
	fs.Bool("json_output", false, "Print entries as a JSON array")
	fs.String("format", "auto", "Input format: auto, markup (xml), tabular (csv)")
	fs.String("delimiter", "", `Tabular column delimiter: ",", ";", "|" or "tab" (default: detect)`)
	fs.String("decode-mode", "fallback", "Payload decoding for non UTF-8 bytes: fallback or lossy")
	fs.Int("max-size-mb", 512, "Largest log file to read, in MB")
	fs.Int("workers", 1, "Goroutines used to normalize and filter entries")
	fs.String("export-db", "", "Store the filtered entries in this SQLite database")
	fs.Int("export-retention-days", 90, "Delete exported runs older than this many days (0 keeps all)")
	fs.Bool("no-color", false, "Disable colored output")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
}

// Load loads configuration from flags, the environment and a .env file.
// Priority: flags > OS environment / .env > defaults. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// godotenv does not override variables already set in the environment
	_ = godotenv.Load()

	setDefaults(v)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	config := &Config{
		FilterResponse:         v.GetString("FILTER_RESPONSE"),
		NegativeFilterResponse: v.GetString("NEGATIVE_FILTER_RESPONSE"),
		FilterExpr:             v.GetString("FILTER_EXPR"),
		ResponseOnly:           v.GetBool("RESPONSE_ONLY"),
		JSONOutput:             v.GetBool("JSON_OUTPUT"),
		NoColor:                v.GetBool("NO_COLOR"),
		InputFormat:            v.GetString("INPUT_FORMAT"),
		CSVDelimiter:           v.GetString("CSV_DELIMITER"),
		DecodeMode:             v.GetString("DECODE_MODE"),
		MaxLogSizeMB:           v.GetInt("MAX_LOG_SIZE_MB"),
		Workers:                v.GetInt("WORKERS"),
		ExportDatabasePath:     v.GetString("EXPORT_DATABASE_PATH"),
		ExportRetentionDays:    v.GetInt("EXPORT_RETENTION_DAYS"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogDir:                 v.GetString("LOG_DIR"),
	}

	if raw := strings.TrimSpace(v.GetString("STATUS_CODE")); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("configuration validation failed: STATUS_CODE must be an integer (got: %s)", raw)
		}
		config.StatusCode = &code
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("INPUT_FORMAT", "auto")
	v.SetDefault("DECODE_MODE", "fallback")
	v.SetDefault("MAX_LOG_SIZE_MB", 512)
	v.SetDefault("WORKERS", 1)
	v.SetDefault("EXPORT_RETENTION_DAYS", 90)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "./logs")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StatusCode != nil && (*c.StatusCode < 100 || *c.StatusCode > 599) {
		return fmt.Errorf("STATUS_CODE must be between 100 and 599 (got: %d)", *c.StatusCode)
	}

	if _, err := source.ParseFormat(c.InputFormat); err != nil {
		return fmt.Errorf("INPUT_FORMAT must be one of: %s (got: %s)", strings.Join(source.ValidFormats(), ", "), c.InputFormat)
	}

	if _, err := tabular.ParseDelimiter(c.CSVDelimiter); err != nil {
		return fmt.Errorf("CSV_DELIMITER is invalid: %w", err)
	}

	if _, err := traffic.ParseDecodeMode(c.DecodeMode); err != nil {
		return fmt.Errorf("DECODE_MODE must be 'fallback' or 'lossy' (got: %s)", c.DecodeMode)
	}

	if c.MaxLogSizeMB < 1 || c.MaxLogSizeMB > 4096 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 1 and 4096")
	}

	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("WORKERS must be between 1 and 64")
	}

	if c.ExportRetentionDays < 0 || c.ExportRetentionDays > 3650 {
		return fmt.Errorf("EXPORT_RETENTION_DAYS must be between 0 and 3650")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if _, err := filter.Compile(c.FilterSpec()); err != nil {
		return fmt.Errorf("FILTER_EXPR is invalid: %w", err)
	}

	return nil
}

// FilterSpec builds the filter configuration.
func (c *Config) FilterSpec() filter.Spec {
	spec := filter.Spec{
		Include:    c.FilterResponse,
		Exclude:    c.NegativeFilterResponse,
		Expression: c.FilterExpr,
	}
	if c.StatusCode != nil {
		code := *c.StatusCode
		spec.StatusCode = &code
	}
	return spec
}

// Format returns the configured input format. Validate has already
// rejected unknown values, so an error here falls back to auto.
func (c *Config) Format() source.Format {
	f, err := source.ParseFormat(c.InputFormat)
	if err != nil {
		return source.FormatAuto
	}
	return f
}

// Delimiter returns the configured tabular delimiter, or 0 to detect it.
func (c *Config) Delimiter() rune {
	d, err := tabular.ParseDelimiter(c.CSVDelimiter)
	if err != nil {
		return 0
	}
	return d
}

// Decode returns the configured payload decode mode.
func (c *Config) Decode() traffic.DecodeMode {
	mode, err := traffic.ParseDecodeMode(c.DecodeMode)
	if err != nil {
		return traffic.DecodeFallback
	}
	return mode
}

// ExportEnabled returns true if filtered entries should be stored
func (c *Config) ExportEnabled() bool {
	return strings.TrimSpace(c.ExportDatabasePath) != ""
}
