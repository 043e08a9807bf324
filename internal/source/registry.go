package source

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the available readers keyed by format.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	readers map[Format]LogReader
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[Format]LogReader),
	}
}

// Register adds reader under its Format, replacing any earlier reader for
// the same format.
func (r *Registry) Register(reader LogReader) error {
	if reader == nil {
		return fmt.Errorf("cannot register nil reader")
	}
	format := reader.Format()
	if format == "" || format == FormatAuto {
		return fmt.Errorf("reader format must be concrete, got %q", format)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.readers[format] = reader
	return nil
}

// Get returns the reader for format.
func (r *Registry) Get(format Format) (LogReader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reader, ok := r.readers[format]
	return reader, ok
}

// List returns the registered formats in sorted order.
func (r *Registry) List() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]Format, 0, len(r.readers))
	for f := range r.readers {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}
