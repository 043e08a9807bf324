package traffic

import (
	"strconv"
	"strings"
)

// Normalizer converts RawRecords into Entries. It never fails: a field that
// is missing or malformed degrades to an empty string or nil.
type Normalizer struct {
	decoder *Decoder
}

// NewNormalizer creates a normalizer that decodes payloads with decoder.
// A nil decoder means the default fallback decoder.
func NewNormalizer(decoder *Decoder) *Normalizer {
	if decoder == nil {
		decoder = defaultDecoder
	}
	return &Normalizer{decoder: decoder}
}

var defaultNormalizer = NewNormalizer(nil)

// Normalize converts rec with the default normalizer.
func Normalize(rec RawRecord) Entry {
	return defaultNormalizer.Normalize(rec)
}

// Normalize converts one RawRecord into an Entry.
func (n *Normalizer) Normalize(rec RawRecord) Entry {
	return Entry{
		ID:              rec[FieldID],
		Time:            rec[FieldTime],
		Tool:            rec[FieldTool],
		Method:          rec[FieldMethod],
		Protocol:        rec[FieldProtocol],
		Host:            rec[FieldHost],
		Port:            rec[FieldPort],
		URL:             rec[FieldURL],
		StatusCode:      parseOptionalInt(rec[FieldStatus]),
		Length:          parseOptionalInt(rec[FieldLength]),
		MIMEType:        rec[FieldMIMEType],
		Comment:         rec[FieldComment],
		DecodedRequest:  n.payload(rec, FieldRequest, FieldRequestPlain),
		DecodedResponse: n.payload(rec, FieldResponse, FieldResponsePlain),
	}
}

func (n *Normalizer) payload(rec RawRecord, key, plainKey string) string {
	raw := rec[key]
	if rec[plainKey] == "true" {
		return raw
	}
	return n.decoder.Decode(raw)
}

// parseOptionalInt returns nil for empty or non-numeric input.
func parseOptionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
