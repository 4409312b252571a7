// Package apperror defines the typed failures returned across service boundaries.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindInvariant    Kind = "INVARIANT_VIOLATION"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindDatabase     Kind = "DATABASE_ERROR"
	KindUnexpected   Kind = "UNEXPECTED_ERROR"
	KindRateLimited  Kind = "RATE_LIMITED"
)

// User-facing rule messages.
const (
	ErrActiveRequestExists = "You already have an active request. Only one request can be active at a time."
	ErrDeleteNotBacklog    = "Only requests in BACKLOG can be deleted"
)

// Error is a classified failure. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Fields  map[string]string
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

func newError(kind Kind, code int, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// Validation reports malformed input with per-field messages.
func Validation(message string, fields map[string]string) *Error {
	e := newError(KindValidation, http.StatusBadRequest, message, nil)
	e.Fields = fields
	return e
}

// NotFound reports a missing or foreign resource without telling the two apart.
func NotFound(resource string) *Error {
	return newError(KindNotFound, http.StatusNotFound, resource+" not found", nil)
}

// Invariant reports a mutation refused by a domain rule.
func Invariant(message string) *Error {
	return newError(KindInvariant, http.StatusConflict, message, nil)
}

// Unauthorized reports a missing or unusable caller identity.
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, http.StatusUnauthorized, message, nil)
}

// Database reports a persistence failure. The cause is kept for logs only.
func Database(cause error) *Error {
	return newError(KindDatabase, http.StatusInternalServerError, "A database error occurred. Please try again.", cause)
}

// Unexpected reports any other failure.
func Unexpected(cause error) *Error {
	return newError(KindUnexpected, http.StatusInternalServerError, "An unexpected error occurred. Please try again.", cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns err's kind, or KindUnexpected for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnexpected
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsInvariant(err error) bool  { return KindOf(err) == KindInvariant }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsDatabase(err error) bool   { return KindOf(err) == KindDatabase }

// From classifies err, wrapping unclassified errors as unexpected.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Unexpected(err)
}
