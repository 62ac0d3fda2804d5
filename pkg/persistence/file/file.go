// Package file provides file-based circuit state persistence.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/persistence"
)

const circuitsDir = "circuits"

// StateStore implements persistence.StateStore on the local filesystem,
// one JSON file per circuit.
type StateStore struct {
	root string
}

// NewStateStore creates a file-backed store rooted at the given directory.
// Accepts a plain path or a file:// URL.
func NewStateStore(root string) *StateStore {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &StateStore{root: cleanRoot}
}

// CircuitState loads the persisted state for a circuit.
func (s *StateStore) CircuitState(_ context.Context, name string) (*models.CircuitState, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
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

// SaveCircuitState writes the state through a temp file and rename so a crash
// mid-write never leaves a truncated record.
func (s *StateStore) SaveCircuitState(_ context.Context, name string, state *models.CircuitState) error {
	dir := filepath.Join(s.root, circuitsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	tmp, err := os.CreateTemp(dir, name+"-*.tmp")
	if err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	if err := tmp.Close(); err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return &persistence.StateError{Op: "SaveCircuitState", Circuit: name, Err: err}
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (s *StateStore) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return fmt.Errorf("state store root does not exist: %s", s.root)
	}

	return nil
}

// Close is a no-op for file persistence.
func (s *StateStore) Close(_ context.Context) error {
	return nil
}

func (s *StateStore) path(name string) string {
	return filepath.Join(s.root, circuitsDir, name+".json")
}
