// Package embedding turns text into fixed-length dense vectors through an
// embedding model service.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingUnavailable indicates the embedding model could not be loaded
// or invoked. Fatal for the calling operation, not for the process; callers
// should surface remediation rather than retry indefinitely.
var ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

// ErrEmptyInput indicates no text was supplied to embed.
var ErrEmptyInput = errors.New("no text to embed")

// Provider generates dense vector embeddings for text.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text in order. A single model
	// invocation serves the whole batch, so this is cheaper per item than
	// repeated Embed calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length produced by the model.
	Dimensions() int

	// ModelName returns the configured model identifier.
	ModelName() string
}

// UnavailableError wraps a lower-level failure as ErrEmbeddingUnavailable
// with enough context to diagnose.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: embedding model unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return ErrEmbeddingUnavailable
}
