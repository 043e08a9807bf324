package output

import (
	"encoding/json"
	"io"

	"github.com/olegiv/burplog-go/internal/traffic"
)

// WriteJSON writes entries as one JSON array indented by four spaces.
// A nil or empty slice is written as []. HTML in decoded payloads is
// written verbatim rather than as \u003c style escapes.
func WriteJSON(w io.Writer, entries []traffic.Entry) error {
	if entries == nil {
		entries = []traffic.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(entries)
}
