package sqlite3

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error surfaced by the reader. It never wraps a panic —
// failures the reader detects are returned as *Error, which carries the
// page/cell context in its own fields; wrapErr also keeps the underlying
// cause, annotated with a stack via github.com/pkg/errors.
type Kind int

const (
	_ Kind = iota
	KindIO
	KindBadHeader
	KindCorruption
	KindNotFound
	KindSchemaParse
	KindTypeMismatch
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindBadHeader:
		return "bad-header"
	case KindCorruption:
		return "corruption"
	case KindNotFound:
		return "not-found"
	case KindSchemaParse:
		return "schema-parse"
	case KindTypeMismatch:
		return "type-mismatch"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned by this package. Page and Cell
// are -1 when not applicable to the failure.
type Error struct {
	Kind    Kind
	Page    int
	Cell    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Page >= 0 && e.Cell >= 0 {
		return fmt.Sprintf("%s: %s (page=%d cell=%d)", e.Kind, e.Message, e.Page, e.Cell)
	}
	if e.Page >= 0 {
		return fmt.Sprintf("%s: %s (page=%d)", e.Kind, e.Message, e.Page)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }
func (e *Error) Cause() error  { return e.cause }

func newErr(kind Kind, page, cell int, format string, args ...any) *Error {
	return &Error{Kind: kind, Page: page, Cell: cell, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(cause error, kind Kind, page, cell int, format string, args ...any) *Error {
	return &Error{Kind: kind, Page: page, Cell: cell, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// IsKind reports whether err (or any error it wraps) carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			se = e
			break
		}
		err = errors.Unwrap(err)
	}
	return se != nil && se.Kind == kind
}
