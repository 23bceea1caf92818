package export

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a job failure for diagnostics and tests. The caller
// only ever sees the prose message; kinds are never part of the external
// contract.
type ErrorKind int

const (
	ErrConnection ErrorKind = iota
	ErrQuery
	ErrSchemaMismatch
	ErrFormat
	ErrIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConnection:
		return "connection"
	case ErrQuery:
		return "query"
	case ErrSchemaMismatch:
		return "schema-mismatch"
	case ErrFormat:
		return "format"
	case ErrIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error wraps a failure with its kind. It unwraps to the underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// classify wraps err with kind unless it already carries one.
func classify(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
