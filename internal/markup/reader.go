// Package markup reads proxy traffic logs exported as XML: a root element
// whose direct "item" children are the captured request/response pairs.
package markup

import (
	"bytes"
	"encoding/xml"
	stderrors "errors"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/olegiv/burplog-go/internal/errors"
	"github.com/olegiv/burplog-go/internal/source"
	"github.com/olegiv/burplog-go/internal/traffic"
)

const itemTag = "item"

// Compile-time interface check
var _ source.LogReader = (*Reader)(nil)

// Reader parses markup logs. The zero value is ready to use.
type Reader struct{}

// NewReader creates a markup reader.
func NewReader() *Reader {
	return &Reader{}
}

// Format implements source.LogReader.
func (r *Reader) Format() source.Format {
	return source.FormatMarkup
}

// Read implements source.LogReader. The whole document is parsed before any
// record is produced, so a malformed document yields an error and no records.
func (r *Reader) Read(in io.Reader) ([]traffic.RawRecord, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, errors.NewIOError("", "failed to read markup log", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, r.parseError("empty document", 0, nil)
	}

	doc := etree.NewDocument()
	doc.ReadSettings.ValidateInput = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, r.parseError("invalid XML", syntaxLine(err), err)
	}

	root := doc.Root()
	if root == nil {
		return nil, r.parseError("document has no root element", 0, nil)
	}

	items := root.SelectElements(itemTag)
	if len(items) == 0 && strings.TrimSpace(root.Text()) != "" {
		return nil, r.parseError("root element <"+root.Tag+"> holds text but no <item> elements", 0, nil)
	}

	records := make([]traffic.RawRecord, 0, len(items))
	for i, item := range items {
		records = append(records, readItem(item, i))
	}
	return records, nil
}

func (r *Reader) parseError(message string, line int, cause error) error {
	return errors.NewParseError(string(source.FormatMarkup), message, line, cause)
}

// readItem extracts one record. Child elements take precedence over
// attributes of the same name, and the first occurrence of a field wins.
func readItem(item *etree.Element, index int) traffic.RawRecord {
	rec := make(traffic.RawRecord)

	for _, child := range item.ChildElements() {
		name, _ := traffic.CanonicalField(child.Tag)
		if _, seen := rec[name]; seen {
			continue
		}

		switch name {
		case traffic.FieldRequest, traffic.FieldResponse:
			rec[name] = text(child)
			if strings.EqualFold(child.SelectAttrValue("base64", ""), "false") {
				rec[plainKey(name)] = "true"
			}
		default:
			rec[name] = strings.TrimSpace(text(child))
		}
	}

	for _, attr := range item.Attr {
		if attr.Space == "xmlns" || attr.Key == "xmlns" {
			continue
		}
		name, _ := traffic.CanonicalField(attr.Key)
		if _, seen := rec[name]; !seen {
			rec[name] = strings.TrimSpace(attr.Value)
		}
	}

	if _, ok := rec[traffic.FieldID]; !ok {
		rec[traffic.FieldID] = strconv.Itoa(index)
	}
	return rec
}

func plainKey(payload string) string {
	if payload == traffic.FieldRequest {
		return traffic.FieldRequestPlain
	}
	return traffic.FieldResponsePlain
}

// text joins every character-data child of e, CDATA sections included.
// Element.Text only returns the leading run.
func text(e *etree.Element) string {
	var sb strings.Builder
	for _, tok := range e.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return sb.String()
}

func syntaxLine(err error) int {
	var se *xml.SyntaxError
	if stderrors.As(err, &se) {
		return se.Line
	}
	return 0
}
