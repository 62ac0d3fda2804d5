package embedding

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingsServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingsResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{0.1, 0.2, 0.3}})
		}

		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestHTTPProviderEmbedBatch(t *testing.T) {
	var calls atomic.Int64

	server := newEmbeddingsServer(t, &calls)
	defer server.Close()

	provider := NewHTTPProvider(slog.Default(), HTTPProviderConfig{
		BaseURL:    server.URL,
		Model:      "all-minilm",
		Dimensions: 3,
	})

	vectors, err := provider.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])

	// One warm-up call plus one batch call.
	assert.Equal(t, int64(2), calls.Load())
}

func TestHTTPProviderWarmUpRunsOnce(t *testing.T) {
	var calls atomic.Int64

	server := newEmbeddingsServer(t, &calls)
	defer server.Close()

	provider := NewHTTPProvider(slog.Default(), HTTPProviderConfig{
		BaseURL: server.URL,
		Model:   "all-minilm",
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := provider.Embed(context.Background(), "concurrent")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	// Exactly one warm-up regardless of concurrent first callers.
	assert.Equal(t, int64(9), calls.Load())
}

func TestHTTPProviderWarmUpRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)

			return
		}

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingsResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{0.1, 0.2, 0.3}})
		}

		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	provider := NewHTTPProvider(slog.Default(), HTTPProviderConfig{
		BaseURL: server.URL,
		Model:   "all-minilm",
	})

	_, err := provider.Embed(context.Background(), "first attempt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	// The endpoint recovered, so the next call warms up again and succeeds.
	vector, err := provider.Embed(context.Background(), "second attempt")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)

	// Failed warm-up, successful warm-up, then the embed itself.
	assert.Equal(t, int64(3), calls.Load())
}

func TestHTTPProviderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model failed to load", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewHTTPProvider(slog.Default(), HTTPProviderConfig{
		BaseURL: server.URL,
		Model:   "all-minilm",
	})

	_, err := provider.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestHTTPProviderEmptyInput(t *testing.T) {
	provider := NewHTTPProvider(slog.Default(), HTTPProviderConfig{BaseURL: "http://unused", Model: "m"})

	_, err := provider.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
