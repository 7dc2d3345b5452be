// Package apperr is the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Error is a classified error. Two *Error values with the same Code and
// Message match under errors.Is, so package-level sentinels can be compared
// even after they are wrapped with a cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates an error with the given code.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with the given code that wraps cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation creates a CodeValidation error.
func Validation(msg string) error {
	return New(CodeValidation, msg)
}

// NotFound creates a CodeNotFound error.
func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

// Conflict creates a CodeConflict error.
func Conflict(msg string) error {
	return New(CodeConflict, msg)
}

// Transient wraps cause as a CodeTransient error.
func Transient(msg string, cause error) error {
	return Wrap(CodeTransient, msg, cause)
}

// Internal wraps cause as a CodeInternal error.
func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether an operation that failed with err may be
// attempted again.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeNotFound:
		return false
	default:
		return true
	}
}
