// Package search answers natural-language queries against the node and
// template catalogs using embedding similarity.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowvector/flowvector/pkg/breaker"
	"github.com/flowvector/flowvector/pkg/catalog"
	"github.com/flowvector/flowvector/pkg/embedding"
	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/otelhelper"
	"github.com/flowvector/flowvector/pkg/vectorindex"
)

const (
	// DefaultMinSimilarity drops near-irrelevant matches.
	DefaultMinSimilarity = 0.30

	defaultLimit = 10

	// Over-fetch factor so post-filtering still fills the requested limit.
	overFetchFactor = 3
	overFetchFloor  = 10

	// Tag boost compensates for short, generic template descriptions.
	tagBoostPerTerm = 0.05
	tagBoostCap     = 0.15

	summaryMaxRunes = 160
)

// ErrEmptyQuery indicates no query text was supplied. Rejected before any
// embedding call is made.
var ErrEmptyQuery = errors.New("query text cannot be empty")

// Service runs semantic searches through the circuit-breaker-wrapped
// embedding provider and vector index.
type Service struct {
	logger        *slog.Logger
	tracer        trace.Tracer
	embedder      embedding.Provider
	index         *vectorindex.Index
	embedBreaker  *breaker.Breaker
	indexBreaker  *breaker.Breaker
	minSimilarity float64
}

// Config tunes search behavior.
type Config struct {
	// MinSimilarity excludes results scoring below it; zero means the
	// default threshold.
	MinSimilarity float64
}

// NewService creates a search service over the given dependencies.
func NewService(
	logger *slog.Logger,
	embedder embedding.Provider,
	index *vectorindex.Index,
	embedBreaker *breaker.Breaker,
	indexBreaker *breaker.Breaker,
	config Config,
) *Service {
	if config.MinSimilarity == 0 {
		config.MinSimilarity = DefaultMinSimilarity
	}

	return &Service{
		logger:        logger.With("module", "search"),
		tracer:        otel.Tracer("flowvector/search"),
		embedder:      embedder,
		index:         index,
		embedBreaker:  embedBreaker,
		indexBreaker:  indexBreaker,
		minSimilarity: config.MinSimilarity,
	}
}

// SearchNodes returns node descriptors ranked by similarity to the query,
// optionally restricted to one category.
func (s *Service) SearchNodes(ctx context.Context, query string, limit int, category string) ([]models.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "search.nodes",
		trace.WithAttributes(
			attribute.String(otelhelper.CollectionKey, catalog.NodesCollection),
			attribute.Int("search.limit", limit),
		))
	defer span.End()

	var filter map[string]any
	if category != "" {
		filter = map[string]any{"category": category}
	}

	hits, err := s.query(ctx, catalog.NodesCollection, query, limit, filter)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, models.SearchResult{
			Kind:        models.SearchResultKindNode,
			Name:        metaString(hit.Metadata, "name"),
			Label:       metaString(hit.Metadata, "label"),
			Category:    metaString(hit.Metadata, "category"),
			Description: summarize(metaString(hit.Metadata, "description")),
			Similarity:  hit.Similarity,
		})
	}

	return truncateResults(results, limit), nil
}

// SearchTemplates returns templates ranked by similarity to the query. With
// tagBoost enabled, templates whose tags lexically overlap the query terms
// are re-ranked upward.
func (s *Service) SearchTemplates(ctx context.Context, query string, limit int, tagBoost bool) ([]models.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "search.templates",
		trace.WithAttributes(
			attribute.String(otelhelper.CollectionKey, catalog.TemplatesCollection),
			attribute.Int("search.limit", limit),
		))
	defer span.End()

	hits, err := s.query(ctx, catalog.TemplatesCollection, query, limit, nil)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(hits))

	for _, hit := range hits {
		tags := splitTags(metaString(hit.Metadata, "tags"))

		similarity := hit.Similarity
		if tagBoost {
			similarity = boost(similarity, query, tags)
		}

		results = append(results, models.SearchResult{
			Kind:        models.SearchResultKindTemplate,
			Name:        metaString(hit.Metadata, "template_id"),
			Label:       metaString(hit.Metadata, "name"),
			Tags:        tags,
			Description: summarize(metaString(hit.Metadata, "description")),
			Similarity:  similarity,
		})
	}

	if tagBoost {
		// Boosting can reorder; the index's insertion-order tie-break is
		// preserved by the stable sort.
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Similarity > results[j].Similarity
		})
	}

	return truncateResults(results, limit), nil
}

// query embeds the text and runs the nearest-neighbor lookup, each behind its
// own breaker, then applies the similarity threshold.
func (s *Service) query(ctx context.Context, collection, query string, limit int, filter map[string]any) ([]vectorindex.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	if limit <= 0 {
		limit = defaultLimit
	}

	vector, err := breaker.Execute(ctx, s.embedBreaker, func(ctx context.Context) ([]float32, error) {
		return s.embedder.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	fetch := limit * overFetchFactor
	if fetch < overFetchFloor {
		fetch = overFetchFloor
	}

	hits, err := breaker.Execute(ctx, s.indexBreaker, func(ctx context.Context) ([]vectorindex.Result, error) {
		return s.index.Query(collection, vector, fetch, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	filtered := hits[:0]

	for _, hit := range hits {
		if hit.Similarity >= s.minSimilarity {
			filtered = append(filtered, hit)
		}
	}

	s.logger.Debug("Search completed", "collection", collection,
		"candidates", len(hits), "above_threshold", len(filtered))

	return filtered, nil
}

func boost(similarity float64, query string, tags []string) float64 {
	terms := make(map[string]bool)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		terms[strings.Trim(term, ".,!?")] = true
	}

	var bonus float64

	for _, tag := range tags {
		if terms[strings.ToLower(tag)] {
			bonus += tagBoostPerTerm
			if bonus >= tagBoostCap {
				bonus = tagBoostCap

				break
			}
		}
	}

	boosted := similarity + bonus
	if boosted > 1 {
		boosted = 1
	}

	return boosted
}

func summarize(description string) string {
	runes := []rune(description)
	if len(runes) <= summaryMaxRunes {
		return description
	}

	return string(runes[:summaryMaxRunes]) + "…"
}

func splitTags(joined string) []string {
	if joined == "" {
		return nil
	}

	return strings.Split(joined, ",")
}

func metaString(metadata map[string]any, key string) string {
	value, _ := metadata[key].(string)

	return value
}

func truncateResults(results []models.SearchResult, limit int) []models.SearchResult {
	if limit <= 0 {
		limit = defaultLimit
	}

	if len(results) > limit {
		return results[:limit]
	}

	return results
}
