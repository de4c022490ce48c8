package errcodes

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	CodeAborted   = "aborted"
	CodeAmbiguous = "ambiguous"
	CodeNotFound  = "not_found"
	CodeStore     = "store_error"
)

type Error struct {
	Code    string
	Message string
	Op      string

	cause error
}

func (err *Error) Error() string {
	if err.cause != nil {
		return err.Message + ": " + err.cause.Error()
	}
	return err.Message
}

func (err *Error) Unwrap() error {
	return err.cause
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Code = err.Code
	te.Message = err.Message
	te.Op = err.Op
	te.cause = err.cause
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code &&
		te.Message == err.Message
}

// ErrAborted is returned by any phase that observed a cancellation request.
// It is a terminal status, not a failure.
var ErrAborted = &Error{
	Code:    CodeAborted,
	Message: "Aborted operation.",
}

// NotFound returns an error with a message indicating the given resource was
// expected in the catalog but is missing.
func NotFound(resource string) error {
	return &Error{
		Code:    CodeNotFound,
		Message: resource + " not found.",
	}
}

// Ambiguous returns an error for a lookup that expected exactly one row and
// got several.
func Ambiguous(resource string) error {
	return &Error{
		Code:    CodeAmbiguous,
		Message: resource + " matched more than one row.",
	}
}

// Store wraps a failure of the relational store. The op names the step that
// failed (prepare, exec, scan, close) and the statement it ran against.
func Store(op, statement string, cause error) error {
	return &Error{
		Code:    CodeStore,
		Message: fmt.Sprintf("SQLite %s failed for %s", op, statement),
		Op:      op,
		cause:   cause,
	}
}

// IsStore reports whether err (or anything it wraps) is a store error.
func IsStore(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == CodeStore
}
