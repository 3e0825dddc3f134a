package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is invoked outside its valid state.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound indicates the requested quiz, question set or record is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps an opaque failure from a storage collaborator.
	ErrPersistence = errors.New("persistence failure")
	// ErrForbidden is returned when a non-admin attempts a moderation action.
	ErrForbidden = errors.New("forbidden")
)

// InvalidStatef wraps ErrInvalidState with context.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Validationf wraps ErrValidation with context.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// PersistenceError tags a driver error. Errors that already carry a domain kind pass through.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// Forbiddenf wraps ErrForbidden with context.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}
