package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when no account matches a login or lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrCredentialMismatch is returned for a wrong password.
	ErrCredentialMismatch = errors.New("incorrect password")
	// ErrForbidden is returned when the caller may not perform the action.
	ErrForbidden = errors.New("access denied")
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError carries a client-safe message about bad input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
