// Package apperr holds the error kinds the booking engine returns to its callers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("not permitted")
	ErrCapacity          = errors.New("provider is not accepting new bookings")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Conflict refinements. Both match ErrConflict under errors.Is.
var (
	ErrSlotTaken    error = &refined{msg: "time slot already taken", kind: ErrConflict}
	ErrServiceInUse error = &refined{msg: "service has active appointments", kind: ErrConflict}
)

type refined struct {
	msg  string
	kind error
}

func (e *refined) Error() string { return e.msg }
func (e *refined) Unwrap() error { return e.kind }

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// TransientError wraps a store or dependency failure the caller may retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err unless it is nil or already one of the engine's own kinds.
func Transient(op string, err error) error {
	if err == nil || Known(err) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

// Known reports whether err carries a domain kind rather than an infrastructure failure.
func Known(err error) bool {
	var ve *ValidationError
	var te *TransientError
	switch {
	case errors.As(err, &ve), errors.As(err, &te):
		return true
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrCapacity),
		errors.Is(err, ErrInvalidTransition):
		return true
	}
	return false
}

// Code is the stable machine-readable name of err's kind.
func Code(err error) string {
	var ve *ValidationError
	var te *TransientError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.As(err, &te):
		return "unavailable"
	default:
		return "internal"
	}
}
