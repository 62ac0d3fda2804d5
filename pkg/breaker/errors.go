// Package breaker implements per-dependency circuit breaking: admission
// control plus bookkeeping, no retries.
package breaker

import (
	"errors"
	"fmt"
	"time"
)

// CircuitOpenError signals "don't bother trying, come back later". It is a
// distinct class from dependency errors: no call was attempted.
type CircuitOpenError struct {
	Circuit    string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %s is open: service temporarily unavailable, retry after %ds",
		e.Circuit, int(e.RetryAfter.Seconds()))
}

// IsCircuitOpen checks whether an error (possibly wrapped) is a circuit
// rejection.
func IsCircuitOpen(err error) bool {
	var openErr *CircuitOpenError

	return errors.As(err, &openErr)
}
