package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation targets a missing record.
var ErrNotFound = errors.New("not found")

// ErrValidation matches any *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// ValidationError reports malformed caller input. Nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
