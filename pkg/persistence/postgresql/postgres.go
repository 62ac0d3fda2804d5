// Package postgresql provides PostgreSQL-backed circuit state persistence.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/persistence"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS circuit_states (
		name TEXT PRIMARY KEY,
		state JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
`

// StateStore implements persistence.StateStore on PostgreSQL.
type StateStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStateStore connects to PostgreSQL and ensures the schema exists.
func NewStateStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*StateStore, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := database.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create circuit_states table: %w", err)
	}

	logger.InfoContext(ctx, "PostgreSQL state store ready")

	return &StateStore{db: database, logger: logger}, nil
}

// CircuitState loads the persisted state for a circuit.
func (s *StateStore) CircuitState(ctx context.Context, name string) (*models.CircuitState, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx, "SELECT state FROM circuit_states WHERE name = $1", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

// SaveCircuitState upserts the state row for a circuit.
func (s *StateStore) SaveCircuitState(ctx context.Context, name string, state *models.CircuitState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO circuit_states (name, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, name, data)
	if err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *StateStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *StateStore) Close(_ context.Context) error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
