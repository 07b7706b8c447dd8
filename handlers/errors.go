package handlers

import "fmt"

// RecoverableError marks a delivery that failed for a reason that may go away, such as an unreachable
// database. The handler set negatively acknowledges the delivery so that the broker redelivers it.
type RecoverableError struct {
	message string
}

// Error returns the error message for a RecoverableError.
func (e RecoverableError) Error() string {
	return e.message
}

// NewRecoverableError returns a new error that asks for the delivery to be requeued.
func NewRecoverableError(formatString string, a ...interface{}) RecoverableError {
	return RecoverableError{message: fmt.Sprintf(formatString, a...)}
}

// UnrecoverableError marks a delivery that can never succeed: a malformed body, an unknown category or a
// recipient that doesn't exist. The handler set rejects the delivery without requeueing it.
type UnrecoverableError struct {
	message string
}

// Error returns the error message for an UnrecoverableError.
func (e UnrecoverableError) Error() string {
	return e.message
}

// NewUnrecoverableError returns a new error that asks for the delivery to be dropped.
func NewUnrecoverableError(formatString string, a ...interface{}) UnrecoverableError {
	return UnrecoverableError{message: fmt.Sprintf(formatString, a...)}
}
