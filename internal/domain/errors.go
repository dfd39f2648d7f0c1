package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthenticated      = errors.New("not authenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ValidationError carries a message fit to show the user. It matches ErrInvalidInput.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}
