package telegram

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField means a required payload field was absent or malformed.
	ErrMissingField = errors.New("required authentication field is missing")
	// ErrExpired means auth_date is older than the accepted window.
	ErrExpired = errors.New("authentication data has expired")
	// ErrSignatureInvalid means the payload hash did not match, or no bot
	// token is configured to check it against.
	ErrSignatureInvalid = errors.New("invalid authentication signature")
	// ErrSessionNotFound means a deep-link token is unknown or already expired.
	ErrSessionNotFound = errors.New("login session not found or expired")
)

// FieldError names the missing field and matches ErrMissingField.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrMissingField
}

func missing(field string) error {
	return &FieldError{Field: field}
}
