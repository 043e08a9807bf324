package traffic

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestNormalize_FullRecord(t *testing.T) {
	rec := RawRecord{
		FieldID:       "7",
		FieldTime:     "Mon Jan 01 12:00:00 UTC 2024",
		FieldTool:     "Proxy",
		FieldMethod:   "POST",
		FieldProtocol: "https",
		FieldHost:     "api.example.com",
		FieldPort:     "443",
		FieldURL:      "https://api.example.com/login",
		FieldStatus:   "200",
		FieldLength:   "1234",
		FieldMIMEType: "JSON",
		FieldComment:  "login",
		FieldRequest:  b64("POST /login HTTP/1.1\r\n\r\n"),
		FieldResponse: b64("HTTP/1.1 200 OK\r\n\r\n{}"),
		"extension":   "php",
	}

	e := Normalize(rec)

	assert.Equal(t, "7", e.ID)
	assert.Equal(t, "Proxy", e.Tool)
	assert.Equal(t, "POST", e.Method)
	assert.Equal(t, "443", e.Port)
	assert.Equal(t, "https://api.example.com/login", e.URL)
	require.NotNil(t, e.StatusCode)
	assert.Equal(t, 200, *e.StatusCode)
	require.NotNil(t, e.Length)
	assert.Equal(t, 1234, *e.Length)
	assert.Equal(t, "JSON", e.MIMEType)
	assert.Equal(t, "login", e.Comment)
	assert.Equal(t, "POST /login HTTP/1.1\r\n\r\n", e.DecodedRequest)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\n{}", e.DecodedResponse)
}

func TestNormalize_MissingFields(t *testing.T) {
	e := Normalize(RawRecord{})

	assert.Empty(t, e.ID)
	assert.Empty(t, e.Host)
	assert.Nil(t, e.StatusCode)
	assert.Nil(t, e.Length)
	assert.Equal(t, "", e.DecodedRequest)
	assert.Equal(t, "", e.DecodedResponse)
}

func TestNormalize_NonNumeric(t *testing.T) {
	e := Normalize(RawRecord{FieldStatus: "OK", FieldLength: "12kb"})
	assert.Nil(t, e.StatusCode)
	assert.Nil(t, e.Length)

	e = Normalize(RawRecord{FieldStatus: " 404 "})
	require.NotNil(t, e.StatusCode)
	assert.Equal(t, 404, *e.StatusCode)
}

func TestNormalize_PlainPayloadMarker(t *testing.T) {
	// "SGVsbG8=" would decode, but the reader said the payload is plain text.
	e := Normalize(RawRecord{
		FieldResponse:      "SGVsbG8=",
		FieldResponsePlain: "true",
		FieldRequest:       "SGVsbG8=",
	})

	assert.Equal(t, "SGVsbG8=", e.DecodedResponse)
	assert.Equal(t, "Hello", e.DecodedRequest)
}

func TestNormalizer_UsesDecoderMode(t *testing.T) {
	invalid := base64.StdEncoding.EncodeToString([]byte{0xff})

	fallback := NewNormalizer(NewDecoder(DecodeFallback)).Normalize(RawRecord{FieldResponse: invalid})
	assert.Equal(t, invalid, fallback.DecodedResponse)

	lossy := NewNormalizer(NewDecoder(DecodeLossy)).Normalize(RawRecord{FieldResponse: invalid})
	assert.NotEqual(t, invalid, lossy.DecodedResponse)
}

func TestEntry_JSONFieldNames(t *testing.T) {
	e := Normalize(RawRecord{FieldID: "1", FieldStatus: "500", FieldResponse: "SGVsbG8="})

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, "1", m["id"])
	assert.Equal(t, float64(500), m["status_code"])
	assert.Nil(t, m["length"])
	assert.Equal(t, "Hello", m["decoded_response"])
	assert.Contains(t, m, "mime_type")
	assert.Contains(t, m, "decoded_request")
}

func TestEntry_HasStatusAndFields(t *testing.T) {
	e := Entry{StatusCode: IntPtr(404)}
	assert.True(t, e.HasStatus(404))
	assert.False(t, e.HasStatus(200))
	assert.False(t, Entry{}.HasStatus(0))

	fields := e.Fields()
	assert.Equal(t, 404, fields["status_code"])
	assert.Nil(t, fields["length"])
}

func TestCanonicalField(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "Status code", want: FieldStatus, wantOK: true},
		{in: "status", want: FieldStatus, wantOK: true},
		{in: "STATUS_CODE", want: FieldStatus, wantOK: true},
		{in: "responselength", want: FieldLength, wantOK: true},
		{in: "Length", want: FieldLength, wantOK: true},
		{in: "MIME type", want: FieldMIMEType, wantOK: true},
		{in: "mimetype", want: FieldMIMEType, wantOK: true},
		{in: " URL ", want: FieldURL, wantOK: true},
		{in: "Request", want: FieldRequest, wantOK: true},
		{in: "extension", want: "extension", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalField(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
