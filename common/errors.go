package common

import "fmt"

// NotFoundError indicates that a referenced notification, user or project does not exist.
type NotFoundError struct {
	message string
}

// Error returns the error message for a NotFoundError.
func (e NotFoundError) Error() string {
	return e.message
}

// NewNotFoundError returns a new error indicating that something could not be found.
func NewNotFoundError(formatString string, a ...interface{}) NotFoundError {
	return NotFoundError{message: fmt.Sprintf(formatString, a...)}
}

// AccessDeniedError indicates that the caller is not allowed to operate on the referenced resource.
type AccessDeniedError struct {
	message string
}

// Error returns the error message for an AccessDeniedError.
func (e AccessDeniedError) Error() string {
	return e.message
}

// NewAccessDeniedError returns a new error indicating that access was denied.
func NewAccessDeniedError(formatString string, a ...interface{}) AccessDeniedError {
	return AccessDeniedError{message: fmt.Sprintf(formatString, a...)}
}

// ValidationError indicates that a request was malformed.
type ValidationError struct {
	message string
}

// Error returns the error message for a ValidationError.
func (e ValidationError) Error() string {
	return e.message
}

// NewValidationError returns a new error indicating that a request was invalid.
func NewValidationError(formatString string, a ...interface{}) ValidationError {
	return ValidationError{message: fmt.Sprintf(formatString, a...)}
}
