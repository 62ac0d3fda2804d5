// Package redis provides Redis-backed circuit state persistence.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/persistence"
)

const keyPrefix = "flowvector:circuit:"

// StateStore implements persistence.StateStore on Redis. Suitable when
// several engine replicas should share breaker state.
type StateStore struct {
	client redis.UniversalClient
}

// NewStateStore connects to Redis using a redis:// URL.
func NewStateStore(redisURL string) (*StateStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &StateStore{client: redis.NewClient(opts)}, nil
}

// NewStateStoreWithClient wraps an existing client, mainly for tests.
func NewStateStoreWithClient(client redis.UniversalClient) *StateStore {
	return &StateStore{client: client}
}

// CircuitState loads the persisted state for a circuit.
func (s *StateStore) CircuitState(ctx context.Context, name string) (*models.CircuitState, error) {
	data, err := s.client.Get(ctx, keyPrefix+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &persistence.StateError{Op: "CircuitState", Circuit: name, Err: persistence.ErrCircuitStateNotFound}
		}

		return nil, &persistence.StateError{Op: "CircuitState", Circuit: name, Err: err}
	}

	var state models.CircuitState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &persistence.StateError{Op: "CircuitState", Circuit: name, Err: err}
	}

	return &state, nil
}

// SaveCircuitState stores the state under a per-circuit key. No TTL: stale
// open state is resolved by the breaker's own reset timeout, not by expiry.
func (s *StateStore) SaveCircuitState(ctx context.Context, name string, state *models.CircuitState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	if err := s.client.Set(ctx, keyPrefix+name, data, 0).Err(); err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	return nil
}

// HealthCheck pings the Redis server.
func (s *StateStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

// Close releases the client connection pool.
func (s *StateStore) Close(_ context.Context) error {
	return s.client.Close()
}
