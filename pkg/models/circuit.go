package models

import "time"

// CircuitStatus is the admission-control state of one protected dependency.
type CircuitStatus string

const (
	CircuitClosed   CircuitStatus = "closed"
	CircuitOpen     CircuitStatus = "open"
	CircuitHalfOpen CircuitStatus = "half_open"
)

// CircuitState is the persisted record for one circuit breaker. It survives
// process restarts so a known-bad dependency is not silently retried.
type CircuitState struct {
	Status           CircuitStatus `json:"status"`
	FailureCount     int           `json:"failure_count"`
	OpenedAt         time.Time     `json:"opened_at,omitempty"`
	FailureThreshold int           `json:"failure_threshold"`
	ResetTimeout     time.Duration `json:"reset_timeout"`
}

// NewCircuitState returns the initial closed state with the given thresholds.
func NewCircuitState(failureThreshold int, resetTimeout time.Duration) *CircuitState {
	return &CircuitState{
		Status:           CircuitClosed,
		FailureThreshold: failureThreshold,
		ResetTimeout:     resetTimeout,
	}
}
