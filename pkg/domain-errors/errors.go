// Package domainerrors provides coded errors for the service layer. Services
// return these so transports can map them to wire responses without inspecting
// error strings, and so callers can branch on the class of failure rather than
// its text.
//
// Conventions:
//   - Stores return raw errors (pkg/platform/sentinel or wrapped driver
//     errors); services translate them into coded errors at the boundary.
//   - Wrap preserves the cause chain for errors.Is / errors.As while stamping
//     a code on top.
//   - HasCode / Is walk the chain, so a coded error survives further wrapping
//     with fmt.Errorf("...: %w", err).
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The string value is the wire identifier
// written into HTTP error envelopes.
type Code string

const (
	// CodeValidation marks input that is syntactically well-formed but
	// semantically unacceptable (blank reason, out-of-range enum).
	CodeValidation Code = "validation_error"

	// CodeInvalidInput marks input that failed structural parsing
	// (malformed UUID, non-integer where an integer is required).
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest marks transport-level request problems (bad JSON,
	// missing body).
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks an operation rejected because of the current state
	// of another resource or a uniqueness constraint.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation marks an operation that would break an
	// aggregate invariant, such as an illegal status transition.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeUnauthorized marks missing or unverifiable caller identity.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden marks a verified caller lacking rights for the operation.
	CodeForbidden Code = "forbidden"

	// CodeTimeout marks an operation abandoned due to a deadline.
	CodeTimeout Code = "timeout"

	// CodeInternal marks unexpected infrastructure failure. Transports must
	// not leak its message to clients.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Construct via New or Wrap.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Unwrap exposes the cause for errors.Is / errors.As traversal.
func (e *Error) Unwrap() error { return e.cause }

// Is matches another coded error by code and message, so tests can assert
//
//	require.ErrorIs(t, err, dErrors.New(dErrors.CodeNotFound, "risk not found"))
//
// without holding the original error value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code && e.message == t.message
}

// Code returns the classification code.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable description without the code prefix.
func (e *Error) Message() string { return e.message }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{code: code, message: message}
}

// Wrap stamps a code and message on an existing error, preserving it as the
// cause. A nil err returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
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

// Is is an alias for HasCode, reading naturally at call sites:
//
//	if dErrors.Is(err, dErrors.CodeNotFound) { ... }
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the chain carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost coded error in the chain,
// or an empty string when the chain carries no code.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.message
	}
	return ""
}
