// Package pipeline turns a traffic log file into a filtered sequence of
// entries: stat and open the file, pick a format, read raw records,
// normalize them and apply the filter.
package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olegiv/burplog-go/internal/errors"
	"github.com/olegiv/burplog-go/internal/filter"
	"github.com/olegiv/burplog-go/internal/logging"
	"github.com/olegiv/burplog-go/internal/markup"
	"github.com/olegiv/burplog-go/internal/source"
	"github.com/olegiv/burplog-go/internal/tabular"
	"github.com/olegiv/burplog-go/internal/traffic"
)

// DefaultMaxSizeMB caps the size of a log read into memory.
const DefaultMaxSizeMB = 512

// Result is the outcome of one pipeline run.
type Result struct {
	Path     string
	Format   source.Format
	Total    int
	Entries  []traffic.Entry
	Duration time.Duration
}

// Matched returns the number of entries that passed the filter.
func (r *Result) Matched() int {
	return len(r.Entries)
}

// Pipeline wires detection, reading, normalization and filtering.
// It keeps no state between calls and may be reused.
type Pipeline struct {
	registry   *source.Registry
	format     source.Format
	normalizer *traffic.Normalizer
	workers    int
	maxSizeMB  int
	log        *logging.SecureLogger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFormat forces a format and skips detection. FormatAuto restores detection.
func WithFormat(f source.Format) Option {
	return func(p *Pipeline) {
		p.format = f
	}
}

// WithDecodeMode selects how payloads that are not valid UTF-8 are decoded.
func WithDecodeMode(mode traffic.DecodeMode) Option {
	return func(p *Pipeline) {
		p.normalizer = traffic.NewNormalizer(traffic.NewDecoder(mode))
	}
}

// WithWorkers sets how many goroutines normalize and filter records.
// Values below 2 keep the sequential path.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		p.workers = n
	}
}

// WithMaxSizeMB sets the largest file the pipeline will read.
func WithMaxSizeMB(mb int) Option {
	return func(p *Pipeline) {
		if mb > 0 {
			p.maxSizeMB = mb
		}
	}
}

// WithRegistry replaces the default reader registry.
func WithRegistry(r *source.Registry) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithDelimiter makes the tabular reader split on delimiter instead of
// sniffing it. Zero keeps detection.
func WithDelimiter(delimiter rune) Option {
	return func(p *Pipeline) {
		if delimiter != 0 {
			_ = p.registry.Register(tabular.NewReaderWithDelimiter(delimiter))
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(log *logging.SecureLogger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// DefaultRegistry returns a registry holding the markup and tabular readers.
func DefaultRegistry() *source.Registry {
	r := source.NewRegistry()
	_ = r.Register(markup.NewReader())
	_ = r.Register(tabular.NewReader())
	return r
}

// New creates a pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:   DefaultRegistry(),
		format:     source.FormatAuto,
		normalizer: traffic.NewNormalizer(nil),
		workers:    1,
		maxSizeMB:  DefaultMaxSizeMB,
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes path with a default pipeline and returns the surviving entries.
func Run(path string, spec filter.Spec) ([]traffic.Entry, error) {
	f, err := filter.Compile(spec)
	if err != nil {
		return nil, err
	}
	res, err := New().Process(path, f)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// Process reads the log at path and returns the entries f includes, in
// source order. An IO or parse failure returns an error and no entries.
// A nil filter includes everything.
func (p *Pipeline) Process(path string, f *filter.Filter) (*Result, error) {
	start := time.Now()

	if err := p.checkFile(path); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(path, "failed to open log file", err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	format, err := p.resolveFormat(path, br)
	if err != nil {
		return nil, err
	}

	reader, ok := p.registry.Get(format)
	if !ok {
		return nil, fmt.Errorf("no reader registered for format %q (available: %v)", format, p.registry.List())
	}
	p.log.Debug().Str("path", path).Str("format", string(format)).Msg("Reading log")

	records, err := reader.Read(br)
	if err != nil {
		return nil, errors.WithPath(err, path)
	}

	entries := p.transform(records, f)
	p.log.Debug().
		Int("records", len(records)).
		Int("matched", len(entries)).
		Int("workers", p.workers).
		Msg("Normalized and filtered records")

	return &Result{
		Path:     path,
		Format:   format,
		Total:    len(records),
		Entries:  entries,
		Duration: time.Since(start),
	}, nil
}

// checkFile rejects paths that are missing, not regular files, or too large.
func (p *Pipeline) checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewIOError(path, "log file not found", nil)
		}
		return errors.NewIOError(path, "failed to stat log file", err)
	}
	if info.IsDir() {
		return errors.NewIOError(path, "path is a directory", nil)
	}

	maxBytes := int64(p.maxSizeMB) * 1024 * 1024
	if info.Size() > maxBytes {
		return errors.NewIOError(path, fmt.Sprintf("log file exceeds maximum size of %dMB (size: %.2fMB)",
			p.maxSizeMB, float64(info.Size())/1024/1024), nil)
	}
	return nil
}

// resolveFormat returns the forced format, or detects it from the path and
// a peek at br. Peeking leaves br's read position untouched.
func (p *Pipeline) resolveFormat(path string, br *bufio.Reader) (source.Format, error) {
	if p.format != "" && p.format != source.FormatAuto {
		return p.format, nil
	}

	peek, err := br.Peek(source.PeekSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", errors.NewIOError(path, "failed to read log file", err)
	}
	return source.Detect(path, peek), nil
}
