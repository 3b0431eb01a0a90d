package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("invalid input")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("operation not allowed")
	// ErrPermissionDenied is returned by stores when the backing service
	// rejects the session, typically right after sign-out.
	ErrPermissionDenied = errors.New("permission denied")
)

var (
	ErrZeroAmount       = &ValidationError{Field: "amount", Reason: "amount cannot be zero"}
	ErrAmountTooLarge   = &ValidationError{Field: "amount", Reason: "amount is too large"}
	ErrInvalidAmount    = &ValidationError{Field: "amount", Reason: "amount must be a valid number"}
	ErrEmptyDescription = &ValidationError{Field: "description", Reason: "description is required"}
	ErrEmptyTitle       = &ValidationError{Field: "title", Reason: "title is required"}
)

// ValidationError describes one rejected field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
