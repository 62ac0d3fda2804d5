// Package persistence provides the storage abstraction for circuit breaker
// state, so breaker decisions survive process restarts.
package persistence

import (
	"context"

	"github.com/flowvector/flowvector/pkg/models"
)

// StateStore persists per-dependency circuit state. Implementations must make
// SaveCircuitState durable before returning; the breaker writes synchronously
// on every transition.
type StateStore interface {
	// CircuitState loads the state for a named circuit. Returns
	// ErrCircuitStateNotFound if the circuit has never been saved.
	CircuitState(ctx context.Context, name string) (*models.CircuitState, error)

	// SaveCircuitState durably stores the state for a named circuit.
	SaveCircuitState(ctx context.Context, name string, state *models.CircuitState) error

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
