package traffic

import "strings"

// fieldAliases maps squashed source names (lower case, no spaces,
// underscores or dashes) to canonical field names.
var fieldAliases = map[string]string{
	"id":             FieldID,
	"time":           FieldTime,
	"tool":           FieldTool,
	"method":         FieldMethod,
	"protocol":       FieldProtocol,
	"host":           FieldHost,
	"port":           FieldPort,
	"url":            FieldURL,
	"status":         FieldStatus,
	"statuscode":     FieldStatus,
	"length":         FieldLength,
	"responselength": FieldLength,
	"mimetype":       FieldMIMEType,
	"comment":        FieldComment,
	"request":        FieldRequest,
	"response":       FieldResponse,
}

// CanonicalField maps a source column or tag name to its canonical field
// name. Matching ignores case, spaces, underscores and dashes, so
// "Status code", "status_code" and "STATUS" all map to FieldStatus.
// Unknown names are returned trimmed with ok == false.
func CanonicalField(name string) (string, bool) {
	name = strings.TrimSpace(name)
	squashed := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(name))

	if canonical, ok := fieldAliases[squashed]; ok {
		return canonical, true
	}
	return name, false
}
