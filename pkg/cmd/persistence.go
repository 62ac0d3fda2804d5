package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowvector/flowvector/pkg/persistence"
	"github.com/flowvector/flowvector/pkg/persistence/file"
	"github.com/flowvector/flowvector/pkg/persistence/postgresql"
	"github.com/flowvector/flowvector/pkg/persistence/redis"
)

// NewStateStore selects a circuit-state store backend by URL scheme:
// postgres://, redis:// or a file path (optionally file://).
func NewStateStore(ctx context.Context, logger *slog.Logger, storeURL string) (persistence.StateStore, error) {
	switch parseStoreProvider(storeURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewStateStore(ctx, logger, storeURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres state store: %w", err)
		}

		return store, nil
	case "redis", "rediss":
		store, err := redis.NewStateStore(storeURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis state store: %w", err)
		}

		return store, nil
	default:
		return file.NewStateStore(storeURL), nil
	}
}

func parseStoreProvider(storeURL string) string {
	scheme, _, found := strings.Cut(storeURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
