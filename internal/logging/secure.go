// Package logging provides a logger that redacts credentials from everything
// it writes. Decoded proxy traffic is full of cookies and tokens, so all log
// output in burplog goes through SecureLogger.
package logging

import (
	"time"

	internalerrors "github.com/olegiv/burplog-go/internal/errors"
	"github.com/olegiv/burplog-go/pkg/logger"
	"github.com/rs/zerolog"
)

// SecureLogger wraps a zerolog logger and sanitizes all string values.
type SecureLogger struct {
	zl     zerolog.Logger
	closer func() error
}

// NewSecure creates a SecureLogger around the provided logger.
func NewSecure(log *logger.Logger) *SecureLogger {
	return &SecureLogger{zl: log.Logger, closer: log.Close}
}

// FromZerolog wraps a bare zerolog logger. Close is a no-op.
func FromZerolog(zl zerolog.Logger) *SecureLogger {
	return &SecureLogger{zl: zl}
}

// Nop returns a SecureLogger that discards everything.
func Nop() *SecureLogger {
	return FromZerolog(zerolog.Nop())
}

// SecureEvent wraps a zerolog Event to provide sanitizing field methods.
type SecureEvent struct {
	event *zerolog.Event
}

// Info starts a new info-level event.
func (s *SecureLogger) Info() *SecureEvent {
	return &SecureEvent{event: s.zl.Info()}
}

// Debug starts a new debug-level event.
func (s *SecureLogger) Debug() *SecureEvent {
	return &SecureEvent{event: s.zl.Debug()}
}

// Warn starts a new warn-level event.
func (s *SecureLogger) Warn() *SecureEvent {
	return &SecureEvent{event: s.zl.Warn()}
}

// Error starts a new error-level event.
func (s *SecureLogger) Error() *SecureEvent {
	return &SecureEvent{event: s.zl.Error()}
}

// With returns a child logger carrying a sanitized string field.
func (s *SecureLogger) With(key, val string) *SecureLogger {
	return &SecureLogger{
		zl:     s.zl.With().Str(key, internalerrors.SanitizeString(val)).Logger(),
		closer: s.closer,
	}
}

// Close closes the underlying logger.
func (s *SecureLogger) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Str adds a sanitized string field.
func (e *SecureEvent) Str(key, val string) *SecureEvent {
	e.event.Str(key, internalerrors.SanitizeString(val))
	return e
}

// Int adds an integer field.
func (e *SecureEvent) Int(key string, val int) *SecureEvent {
	e.event.Int(key, val)
	return e
}

// Int64 adds an int64 field.
func (e *SecureEvent) Int64(key string, val int64) *SecureEvent {
	e.event.Int64(key, val)
	return e
}

// Float64 adds a float64 field.
func (e *SecureEvent) Float64(key string, val float64) *SecureEvent {
	e.event.Float64(key, val)
	return e
}

// Bool adds a boolean field.
func (e *SecureEvent) Bool(key string, val bool) *SecureEvent {
	e.event.Bool(key, val)
	return e
}

// Dur adds a duration field.
func (e *SecureEvent) Dur(key string, val time.Duration) *SecureEvent {
	e.event.Dur(key, val)
	return e
}

// Err adds a sanitized error field.
func (e *SecureEvent) Err(err error) *SecureEvent {
	if err != nil {
		e.event.Err(internalerrors.SanitizeError(err))
	}
	return e
}

// Msg sends the event with a sanitized message.
func (e *SecureEvent) Msg(msg string) {
	e.event.Msg(internalerrors.SanitizeString(msg))
}

// Msgf sends a formatted event. String and error arguments are sanitized;
// other types pass through unchanged.
func (e *SecureEvent) Msgf(format string, v ...interface{}) {
	sanitizedArgs := make([]interface{}, len(v))
	for i, arg := range v {
		switch a := arg.(type) {
		case string:
			sanitizedArgs[i] = internalerrors.SanitizeString(a)
		case error:
			sanitizedArgs[i] = internalerrors.SanitizeError(a)
		default:
			sanitizedArgs[i] = arg
		}
	}
	e.event.Msgf(format, sanitizedArgs...)
}
