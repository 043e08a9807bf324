package traffic

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	textunicode "golang.org/x/text/encoding/unicode"
)

// DecodeMode selects what happens when a payload is valid base64 but the
// decoded bytes are not valid UTF-8.
type DecodeMode string

const (
	// DecodeFallback returns the raw, still-encoded value unchanged.
	DecodeFallback DecodeMode = "fallback"
	// DecodeLossy keeps the decoded text and replaces invalid sequences with U+FFFD.
	DecodeLossy DecodeMode = "lossy"
)

// ParseDecodeMode converts a configuration string to a DecodeMode.
// An empty string selects DecodeFallback.
func ParseDecodeMode(s string) (DecodeMode, error) {
	switch DecodeMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", DecodeFallback:
		return DecodeFallback, nil
	case DecodeLossy:
		return DecodeLossy, nil
	default:
		return "", fmt.Errorf("invalid decode mode: %q (valid modes: %s, %s)", s, DecodeFallback, DecodeLossy)
	}
}

// Decoder turns base64-bearing payload fields into readable text.
// Decode is total: every input yields a string and nothing panics.
type Decoder struct {
	mode DecodeMode
}

// NewDecoder creates a decoder for the given mode.
func NewDecoder(mode DecodeMode) *Decoder {
	if mode == "" {
		mode = DecodeFallback
	}
	return &Decoder{mode: mode}
}

// Mode returns the decoder's mode.
func (d *Decoder) Mode() DecodeMode {
	return d.mode
}

var defaultDecoder = NewDecoder(DecodeFallback)

// DecodePayload decodes raw with the default fallback decoder.
func DecodePayload(raw string) string {
	return defaultDecoder.Decode(raw)
}

// Decode returns the decoded text of raw. When raw is not valid base64, or
// (in fallback mode) decodes to bytes that are not UTF-8, raw is returned
// unchanged: the field is taken to be plain text already.
func (d *Decoder) Decode(raw string) string {
	if raw == "" {
		return ""
	}

	compact := stripSpace(raw)
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return raw
	}

	if utf8.Valid(decoded) {
		return string(decoded)
	}

	if d.mode == DecodeLossy {
		return toValidUTF8(decoded)
	}
	return raw
}

// stripSpace drops whitespace, which proxies insert when wrapping long payloads.
func stripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func toValidUTF8(b []byte) string {
	out, err := textunicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}
