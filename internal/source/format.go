package source

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a log interchange format.
type Format string

// Supported formats. FormatAuto asks the detector to choose.
const (
	FormatAuto    Format = "auto"
	FormatMarkup  Format = "markup"
	FormatTabular Format = "tabular"
)

// ValidFormats returns the accepted format strings, aliases included.
func ValidFormats() []string {
	return []string{"auto", "markup", "xml", "tabular", "csv"}
}

// ParseFormat converts a configuration string to a Format.
// "xml" and "csv" are accepted as aliases and "" means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "markup", "xml":
		return FormatMarkup, nil
	case "tabular", "csv":
		return FormatTabular, nil
	default:
		return "", fmt.Errorf("invalid input format: %q (valid formats: %v)", s, ValidFormats())
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PeekSize is how many leading bytes Detect needs to see.
const PeekSize = 512

// Detect chooses a format from the file extension, or failing that from the
// first non-whitespace byte of peek: '<' selects markup, anything else
// (including an empty peek) selects tabular.
func Detect(path string, peek []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatMarkup
	case ".csv", ".tsv":
		return FormatTabular
	}

	peek = bytes.TrimPrefix(peek, utf8BOM)
	peek = bytes.TrimLeft(peek, " \t\r\n")
	if len(peek) > 0 && peek[0] == '<' {
		return FormatMarkup
	}
	return FormatTabular
}
