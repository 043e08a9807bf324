// Package tabular reads proxy traffic logs exported as delimited text with a
// header row naming the columns.
package tabular

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/olegiv/burplog-go/internal/errors"
	"github.com/olegiv/burplog-go/internal/source"
	"github.com/olegiv/burplog-go/internal/traffic"
)

// Compile-time interface check
var _ source.LogReader = (*Reader)(nil)

// Reader parses tabular logs. encoding/csv places no limit on field size,
// so arbitrarily long request/response cells are read whole.
type Reader struct {
	delimiter rune
}

// NewReader creates a tabular reader that sniffs the delimiter from the
// header row (comma, tab or semicolon).
func NewReader() *Reader {
	return &Reader{}
}

// NewReaderWithDelimiter creates a tabular reader with a fixed delimiter.
func NewReaderWithDelimiter(delimiter rune) *Reader {
	return &Reader{delimiter: delimiter}
}

// ParseDelimiter parses a configured delimiter. An empty value returns 0,
// which means the delimiter is sniffed from the header row. "tab" and "\t"
// name the tab character.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("delimiter must be a single character other than quote or newline (got: %q)", s)
	}
	return r, nil
}

// Format implements source.LogReader.
func (r *Reader) Format() source.Format {
	return source.FormatTabular
}

// Read implements source.LogReader. Rows shorter than the header leave the
// missing trailing fields absent. Cells beyond the header are ignored.
func (r *Reader) Read(in io.Reader) ([]traffic.RawRecord, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, errors.NewIOError("", "failed to read tabular log", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, r.parseError("empty input", 0, nil)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = r.delimiter
	if cr.Comma == 0 {
		cr.Comma = sniffDelimiter(data)
	}

	header, err := cr.Read()
	if err != nil {
		return nil, r.parseError("invalid header row", csvLine(err), err)
	}
	columns, ok := canonicalColumns(header)
	if !ok {
		return nil, r.parseError("header row has no recognized column", 1, nil)
	}

	var records []traffic.RawRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, r.parseError("invalid row", csvLine(err), err)
		}

		rec := make(traffic.RawRecord, len(columns))
		for i, value := range row {
			if i >= len(columns) {
				break
			}
			if columns[i] == "" {
				continue
			}
			if _, seen := rec[columns[i]]; !seen {
				rec[columns[i]] = value
			}
		}
		records = append(records, rec)
	}

	if records == nil {
		records = []traffic.RawRecord{}
	}
	return records, nil
}

func (r *Reader) parseError(message string, line int, cause error) error {
	return errors.NewParseError(string(source.FormatTabular), message, line, cause)
}

// canonicalColumns maps header cells to field names. ok is false when no
// cell names a known field, which means the input is not a traffic log.
func canonicalColumns(header []string) ([]string, bool) {
	columns := make([]string, len(header))
	known := false
	for i, cell := range header {
		name, isKnown := traffic.CanonicalField(cell)
		columns[i] = name
		known = known || isKnown
	}
	return columns, known
}

// sniffDelimiter picks the most frequent candidate in the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', 0
	for _, c := range []rune{',', '\t', ';'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func csvLine(err error) int {
	var pe *csv.ParseError
	if stderrors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
