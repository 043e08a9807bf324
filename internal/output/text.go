// Package output presents filtered entries, either as labeled, colorized
// text for a terminal or as a JSON array.
package output

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/olegiv/burplog-go/internal/traffic"
)

// ColorEnabled reports whether f should get ANSI colors: not disabled by
// flag, NO_COLOR unset, and f is a terminal.
func ColorEnabled(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TextRenderer writes entries as human-readable sections.
type TextRenderer struct {
	w            io.Writer
	responseOnly bool
	color        bool

	header   lipgloss.Style
	request  lipgloss.Style
	response lipgloss.Style
}

// NewTextRenderer creates a renderer writing to w. With responseOnly set,
// only each decoded response is written.
func NewTextRenderer(w io.Writer, responseOnly, color bool) *TextRenderer {
	r := lipgloss.NewRenderer(w)
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	return &TextRenderer{
		w:            w,
		responseOnly: responseOnly,
		color:        color,
		header:       base.Foreground(lipgloss.Color("6")),
		request:      base.Foreground(lipgloss.Color("2")),
		response:     base.Foreground(lipgloss.Color("3")),
	}
}

// Render writes every entry in order.
func (t *TextRenderer) Render(entries []traffic.Entry) error {
	bw := bufio.NewWriter(t.w)
	for _, e := range entries {
		if t.responseOnly {
			t.writeResponseOnly(bw, e)
		} else {
			t.writeEntry(bw, e)
		}
	}
	return bw.Flush()
}

func (t *TextRenderer) writeResponseOnly(bw *bufio.Writer, e traffic.Entry) {
	if e.DecodedResponse == "" {
		return
	}
	t.paint(bw, t.response, e.DecodedResponse)
	bw.WriteString("\n")
}

func (t *TextRenderer) writeEntry(bw *bufio.Writer, e traffic.Entry) {
	fields := []struct {
		label string
		value string
	}{
		{"ID", e.ID},
		{"Time", e.Time},
		{"Tool", e.Tool},
		{"Method", e.Method},
		{"Protocol", e.Protocol},
		{"Host", e.Host},
		{"Port", e.Port},
		{"URL", e.URL},
		{"Status Code", optionalInt(e.StatusCode)},
		{"Length", optionalInt(e.Length)},
		{"MIME Type", e.MIMEType},
		{"Comment", e.Comment},
	}
	for _, f := range fields {
		bw.WriteString(f.label + ": " + f.value + "\n")
	}
	bw.WriteString("\n")

	t.paint(bw, t.header, "Decoded HTTP Request:")
	t.paint(bw, t.request, e.DecodedRequest)

	if e.DecodedResponse != "" {
		bw.WriteString("\n")
		t.paint(bw, t.header, "Decoded HTTP Response:")
		t.paint(bw, t.response, e.DecodedResponse)
	}
	bw.WriteString("\n")
}

// paint writes text line by line, styling each line separately so lipgloss
// never pads multi-line payloads to a common width.
func (t *TextRenderer) paint(bw *bufio.Writer, style lipgloss.Style, text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if t.color && line != "" {
			line = style.Render(line)
		}
		bw.WriteString(line)
		bw.WriteString("\n")
	}
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
