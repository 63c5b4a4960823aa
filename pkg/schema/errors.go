package schema

import (
	"errors"
	"fmt"
)

// ErrSchemaParse is the sentinel wrapped by every ParseError.
var ErrSchemaParse = errors.New("schema parse error")

// ParseError reports a structurally malformed schema document. It is fatal at
// startup: no request can be served against a document that fails to index.
type ParseError struct {
	// Path locates the offending section, e.g. "paths./users/{id}.get".
	Path string

	// Reason is a human-readable description of the problem.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "schema: " + msg
}

// Unwrap returns ErrSchemaParse and the underlying cause so that both
// errors.Is(err, ErrSchemaParse) and errors.Is(err, cause) hold.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSchemaParse, e.Err}
	}
	return []error{ErrSchemaParse}
}

func parseErrorf(path, format string, args ...any) *ParseError {
	return &ParseError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
