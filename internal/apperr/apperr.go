// Package apperr defines the error taxonomy shared by services and handlers.
// Services declare sentinel errors with New; handlers translate the Kind into
// a transport status without inspecting messages.
package apperr

import (
	"errors"
)

// Kind is a stable, user-facing error category.
type Kind string

const (
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation"
	KindStateConflict        Kind = "state_conflict"
	KindInsufficientResource Kind = "insufficient_resource"
	KindEntitlementRequired  Kind = "entitlement_required"
	KindInternal             Kind = "internal"
)

// Error is a categorized error carrying a message safe to show to users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates a categorized error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a categorized error that wraps err. errors.Is(result, err) holds.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the category of err. Uncategorized errors are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of the outermost categorized error.
// Uncategorized errors yield a generic message so internals never leak.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Error()
	}
	return "internal error, please try again later"
}

// Validation is a shorthand for a validation error with a formatted message.
func Validation(message string) *Error {
	return New(KindValidation, message)
}
