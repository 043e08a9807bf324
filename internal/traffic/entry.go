// Package traffic holds the canonical representation of one proxied HTTP
// exchange and the conversion from format-specific raw records into it.
package traffic

// Canonical field names shared by every reader. Readers map their own
// column or tag names onto these with CanonicalField.
const (
	FieldID       = "id"
	FieldTime     = "time"
	FieldTool     = "tool"
	FieldMethod   = "method"
	FieldProtocol = "protocol"
	FieldHost     = "host"
	FieldPort     = "port"
	FieldURL      = "url"
	FieldStatus   = "status"
	FieldLength   = "length"
	FieldMIMEType = "mime_type"
	FieldComment  = "comment"
	FieldRequest  = "request"
	FieldResponse = "response"

	// FieldRequestPlain and FieldResponsePlain are set to "true" by a reader
	// when the source marks the payload as not base64 encoded.
	FieldRequestPlain  = "request_plain"
	FieldResponsePlain = "response_plain"
)

// RawRecord maps field names to raw string values for one traffic item,
// as extracted by a reader. Which keys are present depends on the source.
type RawRecord map[string]string

// Entry is one normalized, decoded traffic record.
// StatusCode and Length are nil when the source value is absent or not numeric.
// DecodedRequest and DecodedResponse are always plain text, possibly empty.
type Entry struct {
	ID              string `json:"id"`
	Time            string `json:"time"`
	Tool            string `json:"tool"`
	Method          string `json:"method"`
	Protocol        string `json:"protocol"`
	Host            string `json:"host"`
	Port            string `json:"port"`
	URL             string `json:"url"`
	StatusCode      *int   `json:"status_code"`
	Length          *int   `json:"length"`
	MIMEType        string `json:"mime_type"`
	Comment         string `json:"comment"`
	DecodedRequest  string `json:"decoded_request"`
	DecodedResponse string `json:"decoded_response"`
}

// HasStatus reports whether the entry carries exactly the given status code.
func (e Entry) HasStatus(code int) bool {
	return e.StatusCode != nil && *e.StatusCode == code
}

// Fields returns the entry as a map keyed by its JSON field names.
// Nil numeric fields map to a nil interface value.
func (e Entry) Fields() map[string]interface{} {
	m := map[string]interface{}{
		"id":               e.ID,
		"time":             e.Time,
		"tool":             e.Tool,
		"method":           e.Method,
		"protocol":         e.Protocol,
		"host":             e.Host,
		"port":             e.Port,
		"url":              e.URL,
		"status_code":      nil,
		"length":           nil,
		"mime_type":        e.MIMEType,
		"comment":          e.Comment,
		"decoded_request":  e.DecodedRequest,
		"decoded_response": e.DecodedResponse,
	}
	if e.StatusCode != nil {
		m["status_code"] = *e.StatusCode
	}
	if e.Length != nil {
		m["length"] = *e.Length
	}
	return m
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
