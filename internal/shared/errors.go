package shared

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the closed taxonomy surfaced to API callers.
type Kind int

const (
	// KindInternal covers every unexpected failure, including store errors.
	KindInternal Kind = iota
	// KindNotFound indicates an entity reference that does not resolve.
	KindNotFound
	// KindConflict indicates a uniqueness or referential-use violation.
	KindConflict
	// KindForbidden indicates an authorization, hierarchy or guardrail denial.
	KindForbidden
	// KindUnauthorized indicates an unresolvable acting principal or a
	// protected-field mutation attempt.
	KindUnauthorized
	// KindBadRequest indicates a malformed reference or payload.
	KindBadRequest
)

// Error is the single error type crossing service boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a KindNotFound error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict builds a KindConflict error.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Forbidden builds a KindForbidden error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// BadRequest builds a KindBadRequest error.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Internal wraps an unexpected failure without exposing its detail.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf extracts the taxonomy kind from any error chain.
// Unclassified errors are treated as internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// UserSafeMessage returns a message suitable for API responses. Internal
// errors never leak their underlying detail.
func UserSafeMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal server error"
}
