// Package apperror defines the error taxonomy shared by every layer and its
// mapping onto HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation to the HTTP boundary.
type Kind int

const (
	Internal Kind = iota
	Validation
	Conflict
	Unauthorized
	Forbidden
	NotFound
	CapacityExceeded
	InvalidState
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation_error"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case CapacityExceeded:
		return "capacity_exceeded"
	case InvalidState:
		return "invalid_state"
	default:
		return "internal"
	}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so callers can
// write errors.Is(err, apperror.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is comparisons. They match any error of the kind.
var (
	ErrValidation       = &Error{Kind: Validation}
	ErrConflict         = &Error{Kind: Conflict}
	ErrUnauthorized     = &Error{Kind: Unauthorized}
	ErrForbidden        = &Error{Kind: Forbidden}
	ErrNotFound         = &Error{Kind: NotFound}
	ErrCapacityExceeded = &Error{Kind: CapacityExceeded}
	ErrInvalidState     = &Error{Kind: InvalidState}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies err under kind with a client-facing message.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithFields builds a Validation error carrying per-field messages.
func WithFields(msg string, fields []FieldError) *Error {
	return &Error{Kind: Validation, Message: msg, Fields: fields}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-facing message of a classified error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

// Fields returns the field errors attached to err, if any.
func Fields(err error) []FieldError {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Status maps a kind onto its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case Validation, Conflict, CapacityExceeded, InvalidState:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
