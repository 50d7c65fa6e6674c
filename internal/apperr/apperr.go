// Package apperr defines the typed failure taxonomy surfaced by the
// reconciliation engine. Every error carries an HTTP-style status class so
// the handler layer can serialize it without inspecting error text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota
	KindConflict
	KindNotFound
	KindAuthentication
	KindRateLimited
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindRateLimited:
		return "rate_limited"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets errors.Is match on kind: errors.Is(err, apperr.Conflict("")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// WithCause attaches an underlying error for logs without changing what the
// caller sees.
func (e *Error) WithCause(err error) *Error {
	clone := *e
	clone.cause = err
	return &clone
}

// WithStatus overrides the default status for kinds that vary by operation,
// e.g. authentication failures that map to 400 on code-confirmation flows.
func (e *Error) WithStatus(status int) *Error {
	clone := *e
	clone.Status = status
	return &clone
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

// Conflict reports duplicate email/phone/account. Kept at 400 because the
// signup form treats it as user-correctable input.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusBadRequest, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Status: http.StatusUnauthorized, Message: message}
}

func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Status: http.StatusTooManyRequests, Message: message}
}

func Dependency(message string) *Error {
	return &Error{Kind: KindDependency, Status: http.StatusInternalServerError, Message: message}
}

// StatusOf extracts the HTTP status class from any error, defaulting to 500
// for errors that did not pass through the taxonomy.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the taxonomy message, or a generic message for
// unclassified errors so raw internals never leak to callers.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// KindOf returns the kind for classified errors and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return 0, false
}
