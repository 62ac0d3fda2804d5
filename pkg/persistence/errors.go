// Package persistence provides standardized error types for state storage.
package persistence

import (
	"errors"
	"fmt"
)

// ErrCircuitStateNotFound indicates no state has been saved for the circuit.
var ErrCircuitStateNotFound = errors.New("circuit state not found")

// StateError wraps storage errors with the operation and circuit name.
type StateError struct {
	Op      string
	Circuit string
	Err     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s operation failed for circuit %s: %v", e.Op, e.Circuit, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsCircuitStateNotFound checks if an error indicates missing circuit state.
func IsCircuitStateNotFound(err error) bool {
	return errors.Is(err, ErrCircuitStateNotFound)
}
