package errors

import (
	stderrors "errors"
	"strconv"
)

// Kind classifies a document-level failure.
type Kind int

const (
	// KindIO means the source could not be opened or read.
	KindIO Kind = iota + 1
	// KindParse means the source was readable but is not valid in its format.
	KindParse
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindParse:
		return "parse error"
	default:
		return "error"
	}
}

// Sentinels for errors.Is checks against a SourceError.
var (
	ErrIO    = stderrors.New("io error")
	ErrParse = stderrors.New("parse error")
)

// SourceError is a document-level failure that aborts a whole read.
// Field-level anomalies never produce one.
type SourceError struct {
	Kind    Kind
	Path    string
	Format  string
	Message string
	Line    int
	Cause   error
}

func (e *SourceError) Error() string {
	msg := e.Kind.String()
	if e.Format != "" {
		msg += " (" + e.Format + ")"
	}
	if e.Path != "" {
		msg += " in " + e.Path
	}
	msg += ": " + e.Message
	if e.Line > 0 {
		msg += " (line " + strconv.Itoa(e.Line) + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind.
func (e *SourceError) Is(target error) bool {
	switch target {
	case ErrIO:
		return e.Kind == KindIO
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// NewIOError returns a KindIO SourceError for path.
func NewIOError(path, message string, cause error) error {
	return &SourceError{Kind: KindIO, Path: path, Message: message, Cause: cause}
}

// NewParseError returns a KindParse SourceError. Readers usually leave path
// empty and the pipeline fills it in with WithPath.
func NewParseError(format, message string, line int, cause error) error {
	return &SourceError{Kind: KindParse, Format: format, Message: message, Line: line, Cause: cause}
}

// WithPath sets the source path on a SourceError that does not have one yet.
// Other errors are returned unchanged.
func WithPath(err error, path string) error {
	var se *SourceError
	if stderrors.As(err, &se) && se.Path == "" {
		se.Path = path
	}
	return err
}

// IsIO reports whether err is (or wraps) an IO-kind SourceError.
func IsIO(err error) bool {
	return stderrors.Is(err, ErrIO)
}

// IsParse reports whether err is (or wraps) a parse-kind SourceError.
func IsParse(err error) bool {
	return stderrors.Is(err, ErrParse)
}
