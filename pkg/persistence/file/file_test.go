package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/persistence"
)

func TestStateStoreRoundTrip(t *testing.T) {
	store := NewStateStore(t.TempDir())
	ctx := context.Background()

	state := models.NewCircuitState(5, 30*time.Second)
	state.Status = models.CircuitOpen
	state.FailureCount = 5
	state.OpenedAt = time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.SaveCircuitState(ctx, "flow-api", state))

	loaded, err := store.CircuitState(ctx, "flow-api")
	require.NoError(t, err)

	assert.Equal(t, models.CircuitOpen, loaded.Status)
	assert.Equal(t, 5, loaded.FailureCount)
	assert.Equal(t, 30*time.Second, loaded.ResetTimeout)
	assert.True(t, state.OpenedAt.Equal(loaded.OpenedAt))
}

func TestStateStoreNotFound(t *testing.T) {
	store := NewStateStore(t.TempDir())

	_, err := store.CircuitState(context.Background(), "never-saved")
	require.Error(t, err)
	assert.True(t, persistence.IsCircuitStateNotFound(err))
}

func TestStateStoreOverwrite(t *testing.T) {
	store := NewStateStore(t.TempDir())
	ctx := context.Background()

	first := models.NewCircuitState(5, 30*time.Second)
	first.FailureCount = 2
	require.NoError(t, store.SaveCircuitState(ctx, "embedding", first))

	second := models.NewCircuitState(5, 30*time.Second)
	require.NoError(t, store.SaveCircuitState(ctx, "embedding", second))

	loaded, err := store.CircuitState(ctx, "embedding")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.FailureCount)
}

func TestStateStoreFileURL(t *testing.T) {
	dir := t.TempDir()
	store := NewStateStore("file://" + dir)

	require.NoError(t, store.HealthCheck(context.Background()))
}
