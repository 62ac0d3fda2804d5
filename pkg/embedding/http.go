package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultDimensions = 384
)

// HTTPProvider calls an OpenAI-compatible embeddings endpoint. The first
// request warms the model (some servers download weights on first use);
// concurrent first callers share a single warm-up, and a failed warm-up is
// retried on the next call.
type HTTPProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	logger     *slog.Logger

	warmMu sync.Mutex
	warmed bool
}

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	BaseURL    string // e.g. http://localhost:11434/v1
	Model      string // e.g. all-minilm
	Dimensions int    // Vector length the model produces; defaults to 384
	Timeout    time.Duration
}

// NewHTTPProvider creates a provider against an OpenAI-compatible
// /embeddings endpoint.
func NewHTTPProvider(logger *slog.Logger, config HTTPProviderConfig) *HTTPProvider {
	if config.Dimensions == 0 {
		config.Dimensions = defaultDimensions
	}

	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &HTTPProvider{
		baseURL:    config.BaseURL,
		model:      config.Model,
		dimensions: config.Dimensions,
		client:     &http.Client{Timeout: config.Timeout},
		logger:     logger.With("module", "embedding"),
	}
}

// Dimensions returns the configured vector length.
func (p *HTTPProvider) Dimensions() int {
	return p.dimensions
}

// ModelName returns the configured model identifier.
func (p *HTTPProvider) ModelName() string {
	return p.model
}

// Embed returns the embedding for a single text.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vectors[0], nil
}

// EmbedBatch embeds all texts in one model invocation.
func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	if err := p.warmUp(ctx); err != nil {
		return nil, err
	}

	vectors, err := p.request(ctx, texts)
	if err != nil {
		return nil, &UnavailableError{Op: "EmbedBatch", Err: err}
	}

	if len(vectors) != len(texts) {
		return nil, &UnavailableError{
			Op:  "EmbedBatch",
			Err: fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors)),
		}
	}

	return vectors, nil
}

// warmUp issues a tiny embedding request before the first real one. The mutex
// serializes concurrent first callers so only one warm-up request is in flight,
// and the warmed flag is only set on success, so a transient endpoint outage
// does not poison later calls.
func (p *HTTPProvider) warmUp(ctx context.Context) error {
	p.warmMu.Lock()
	defer p.warmMu.Unlock()

	if p.warmed {
		return nil
	}

	p.logger.Info("Warming embedding model", "model", p.model)

	if _, err := p.request(ctx, []string{"warmup"}); err != nil {
		return &UnavailableError{Op: "warmUp", Err: err}
	}

	p.warmed = true
	p.logger.Info("Embedding model ready", "model", p.model)

	return nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *HTTPProvider) request(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embeddingsRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embeddings endpoint returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	vectors := make([][]float32, len(parsed.Data))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("response index %d out of range", item.Index)
		}

		vectors[item.Index] = item.Embedding
	}

	return vectors, nil
}
