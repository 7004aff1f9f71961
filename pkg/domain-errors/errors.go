// Package domainerrors provides coded errors for the service layer.
//
// Services and handlers attach a stable machine-readable code to each error
// so the transport layer can map it to an HTTP status without string matching.
// Codes are part of the API contract; messages are for humans and may change.
//
// Usage:
//
//	return dErrors.New(dErrors.CodeValidation, "weight must be positive")
//	return dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
//	if dErrors.HasCode(err, dErrors.CodeNotFound) { ... }
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error.
type Code string

const (
	// CodeBadRequest marks requests that could not be decoded or are
	// structurally malformed.
	CodeBadRequest Code = "bad_request"

	// CodeValidation marks well-formed requests that violate a field rule.
	CodeValidation Code = "validation_error"

	// CodeInvalidInput marks identifier or value parsing failures at trust
	// boundaries.
	CodeInvalidInput Code = "invalid_input"

	// CodeUnauthorized marks missing or unverifiable credentials.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden marks authenticated callers lacking permission.
	CodeForbidden Code = "forbidden"

	// CodeNotFound marks lookups for entities that do not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks updates rejected to protect an existing state.
	CodeConflict Code = "conflict"

	// CodeTimeout marks operations that exceeded their deadline.
	CodeTimeout Code = "timeout"

	// CodeInvariantViolation marks internal states that should be impossible.
	// These indicate bugs, not caller mistakes.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks unexpected infrastructure failures. Details are
	// logged, never returned to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. It optionally wraps an underlying cause.
type Error struct {
	code    Code
	message string
	cause   error
}

// New creates a coded error with a human-readable message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another coded error by code and message, letting tests assert
// with errors.Is against a freshly constructed target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code && e.message == t.message
}

// Code returns the machine-readable code.
func (e *Error) Code() Code {
	return e.code
}

// Message returns the human-readable message without the code prefix.
func (e *Error) Message() string {
	return e.message
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is a readability alias for HasCode, used in assertions.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when err
// carries none. Useful for metrics labels and transport mapping.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}
