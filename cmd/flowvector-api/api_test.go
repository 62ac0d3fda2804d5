package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowvector/flowvector/pkg/catalog"
	"github.com/flowvector/flowvector/pkg/cmd"
	"github.com/flowvector/flowvector/pkg/events"
	"github.com/flowvector/flowvector/pkg/mocks"
	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/persistence/file"
	"github.com/flowvector/flowvector/pkg/testutil"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()

	snapshot := catalog.Snapshot{}

	for _, descriptor := range []*models.NodeDescriptor{
		testutil.ChatModelDescriptor(),
		testutil.ConversationMemoryDescriptor(),
		testutil.ConversationChainDescriptor(),
	} {
		raw, err := json.Marshal(descriptor)
		require.NoError(t, err)

		snapshot.Nodes = append(snapshot.Nodes, raw)
	}

	raw, err := json.Marshal(testutil.SupportBotTemplate())
	require.NoError(t, err)

	snapshot.Templates = append(snapshot.Templates, raw)

	data, err := json.Marshal(snapshot)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func newTestAPI(t *testing.T) *API {
	t.Helper()

	ctx := context.Background()
	logger := slog.Default()

	bus, err := cmd.NewEventBus("gochannel", "flowvector-api-test", logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	api, err := NewAPI(ctx, logger, Config{
		StateStore:  file.NewStateStore(t.TempDir()),
		EventBus:    bus,
		Embedder:    &testutil.StubEmbedder{},
		CatalogPath: writeSnapshot(t),
		FlowAPIURL:  "http://127.0.0.1:0",
	})
	require.NoError(t, err)

	return api
}

func TestRefreshCatalog(t *testing.T) {
	api := newTestAPI(t)

	stats, err := api.RefreshCatalog(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.NodeCount)
	assert.Equal(t, 1, stats.TemplateCount)
	assert.Equal(t, 3, api.registry.NodeCount())
}

func TestRefreshEventTriggersIngestion(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	refreshed := make(chan *events.CatalogRefreshed, 1)

	err := api.config.EventBus.Handle(events.CatalogRefreshedEvent, func(_ context.Context, event any) error {
		done, ok := event.(*events.CatalogRefreshed)
		require.True(t, ok)
		refreshed <- done

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, api.SubscribeRefreshEvents(ctx))

	request := events.NewCatalogRefreshRequested("manual", "")
	require.NoError(t, api.config.EventBus.Publish(ctx, "catalog", request))

	select {
	case done := <-refreshed:
		assert.Equal(t, 3, done.NodeCount)
		assert.Equal(t, 1, done.TemplateCount)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for catalog refreshed event")
	}

	assert.Equal(t, 3, api.registry.NodeCount())
}

func TestSubscribeRefreshEventsRegistersHandler(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.CatalogRefreshRequestedEvent, mock.Anything).Return(nil)
	bus.On("Subscribe", mock.Anything).Return(nil)

	api, err := NewAPI(context.Background(), slog.Default(), Config{
		StateStore:  file.NewStateStore(t.TempDir()),
		EventBus:    bus,
		Embedder:    &testutil.StubEmbedder{},
		CatalogPath: writeSnapshot(t),
		FlowAPIURL:  "http://127.0.0.1:0",
	})
	require.NoError(t, err)

	require.NoError(t, api.SubscribeRefreshEvents(context.Background()))
	bus.AssertExpectations(t)
}
