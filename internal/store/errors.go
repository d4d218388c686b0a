package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested job does not exist in the
	// store. Expired entries are indistinguishable from entries that never
	// existed.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists is returned when creating a job whose ID is already
	// present in the store.
	ErrAlreadyExists = errors.New("job already exists")

	// ErrAlreadyTerminal is returned when an update targets a job that has
	// already reached a terminal state. A late success never clobbers a
	// revocation, and stop requests on finished jobs surface this.
	ErrAlreadyTerminal = errors.New("job already in a terminal state")

	// ErrInvalidTransition is returned when an update would violate the
	// monotonic status transition rules for a non-terminal job.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnavailable is returned when the store backend cannot be reached.
	ErrUnavailable = errors.New("task store unavailable")
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if the error indicates a write conflict with the
// job's current state (duplicate create or terminal update).
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrAlreadyTerminal)
}

func wrapUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
