package crypto

import (
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned when a signature does not verify against the message and key(s).
var ErrInvalidSignature = errors.New("invalid signature")

// invalidInputsError is returned when a function's input does not satisfy its preconditions
// (malformed key bytes, seeds that are too short, empty aggregation sets).
type invalidInputsError struct {
	error
}

func newInvalidInputsErrorf(msg string, args ...interface{}) error {
	return invalidInputsError{fmt.Errorf(msg, args...)}
}

func (e invalidInputsError) Unwrap() error {
	return e.error
}

// IsInvalidInputsError checks whether the error is an invalidInputsError.
func IsInvalidInputsError(err error) bool {
	var target invalidInputsError
	return errors.As(err, &target)
}
