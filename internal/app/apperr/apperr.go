package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindInvalidReference Kind = "invalid_reference"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindStorage          Kind = "storage"
	KindUnauthorized     Kind = "unauthorized"
)

// Status maps a kind to the HTTP status the transport layer responds with.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidReference, KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is the client-visible failure produced by application handlers.
// Err keeps the underlying cause for logging and errors.Is checks.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(field, message string, err error) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message, Err: err}
}

func InvalidReference(field, message string, err error) *Error {
	return &Error{Kind: KindInvalidReference, Field: field, Message: message, Err: err}
}

func Forbidden(message string, err error) *Error {
	return &Error{Kind: KindForbidden, Message: message, Err: err}
}

func NotFound(message string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: err}
}

func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// Storage hides the driver error behind a generic message.
func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Message: "storage failure", Err: err}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err; unknown errors are storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindStorage
}

func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
