// Package source defines the capability shared by the traffic log readers
// and the detection logic that picks one of them for a given input.
package source

import (
	"io"

	"github.com/olegiv/burplog-go/internal/traffic"
)

// LogReader parses one complete log in a single format into raw records.
// Implementations keep field-level leniency (missing or unknown fields are
// not errors) and document-level strictness: input that is not the format
// at all yields a parse-kind error and no records.
type LogReader interface {
	// Read consumes r and returns one RawRecord per traffic item, in source order.
	Read(r io.Reader) ([]traffic.RawRecord, error)

	// Format returns the format this reader handles.
	Format() Format
}
