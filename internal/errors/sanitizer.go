// Package errors provides the document-level error taxonomy and utilities
// for redacting credentials found in decoded proxy traffic.
package errors

import (
	"fmt"
	"regexp"
)

// Credential patterns to redact. Decoded requests and responses routinely
// carry these, and so do error messages quoting them.
var credentialPatterns = []*regexp.Regexp{
	// Authorization header value, any scheme
	regexp.MustCompile(`(?i)(authorization|proxy-authorization)(:\s*|\s+)[^\r\n]+`),
	// Bearer tokens outside a header line
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.~+/=-]+`),
	// Cookie and Set-Cookie header values
	regexp.MustCompile(`(?i)(set-)?cookie:\s*[^\r\n]+`),
	// API keys and tokens in query strings or form bodies
	regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token|session[_-]?id|password)=[^\s&"']+`),
	// X-API-Key style headers
	regexp.MustCompile(`(?i)x-(api-key|auth-token|csrf-token):\s*[^\r\n]+`),
	// JSON Web Tokens
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]*`),
}

const redactedPlaceholder = "[REDACTED]"

// SanitizeError wraps an error, redacting any credentials in its message.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	sanitized := SanitizeString(err.Error())
	if sanitized == err.Error() {
		// Nothing redacted, keep the original error chain as-is
		return err
	}

	return &sanitizedError{
		original:  err,
		sanitized: sanitized,
	}
}

// SanitizeString redacts credential patterns from a string.
func SanitizeString(s string) string {
	result := s
	for _, pattern := range credentialPatterns {
		result = pattern.ReplaceAllString(result, redactedPlaceholder)
	}
	return result
}

// Wrapf wraps an error with a formatted message, sanitizing the underlying error.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, SanitizeError(err))
}

type sanitizedError struct {
	original  error
	sanitized string
}

func (e *sanitizedError) Error() string {
	return e.sanitized
}

func (e *sanitizedError) Unwrap() error {
	return e.original
}

// ContainsCredentials reports whether s appears to contain credentials.
func ContainsCredentials(s string) bool {
	for _, pattern := range credentialPatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}
