// Package apperr holds the error taxonomy shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// ValidationError is returned for malformed input. Message is safe to show to callers.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, msg string) error {
	return ValidationError{Field: field, Message: msg}
}

// Forbidden wraps ErrForbidden with a caller-facing reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// NotFound wraps ErrNotFound with the kind of thing that was missing.
func NotFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func Conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

func IsValidation(err error) (ValidationError, bool) {
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return ve, false
}
