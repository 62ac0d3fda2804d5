// Package main provides the Flowvector API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/flowvector/flowvector/pkg/breaker"
	"github.com/flowvector/flowvector/pkg/catalog"
	"github.com/flowvector/flowvector/pkg/embedding"
	"github.com/flowvector/flowvector/pkg/eventbus"
	"github.com/flowvector/flowvector/pkg/events"
	"github.com/flowvector/flowvector/pkg/flow"
	"github.com/flowvector/flowvector/pkg/flowapi"
	"github.com/flowvector/flowvector/pkg/persistence"
	"github.com/flowvector/flowvector/pkg/search"
	"github.com/flowvector/flowvector/pkg/vectorindex"
	"github.com/flowvector/flowvector/pkg/web"
)

// Config collects the API process dependencies and tunables.
type Config struct {
	StateStore       persistence.StateStore
	EventBus         eventbus.EventBus
	Embedder         embedding.Provider
	CatalogPath      string
	FlowAPIURL       string
	FlowAPIKey       string
	MinSimilarity    float64
	FailureThreshold int
	ResetTimeout     time.Duration
}

// API owns the in-process vector index and registry, so catalog refreshes run
// here rather than in a separate process.
type API struct {
	logger        *slog.Logger
	config        Config
	ingestor      *catalog.Ingestor
	registry      *catalog.Registry
	searchService *search.Service
	flowService   *flow.Service
	breakers      []*breaker.Breaker
	validate      *validator.Validate
}

func NewAPI(ctx context.Context, logger *slog.Logger, config Config) (*API, error) {
	breakerConfig := breaker.Config{
		FailureThreshold: config.FailureThreshold,
		ResetTimeout:     config.ResetTimeout,
	}

	embedBreaker, err := breaker.New(ctx, "embedding", config.StateStore, logger, breakerConfig)
	if err != nil {
		return nil, err
	}

	indexBreaker, err := breaker.New(ctx, "vector-index", config.StateStore, logger, breakerConfig)
	if err != nil {
		return nil, err
	}

	apiBreaker, err := breaker.New(ctx, "flow-api", config.StateStore, logger, breakerConfig)
	if err != nil {
		return nil, err
	}

	index := vectorindex.New()
	registry := catalog.NewRegistry(logger)

	ingestor, err := catalog.NewIngestor(logger, config.Embedder, embedBreaker, index, registry)
	if err != nil {
		return nil, err
	}

	searchService := search.NewService(logger, config.Embedder, index,
		embedBreaker, indexBreaker, search.Config{MinSimilarity: config.MinSimilarity})

	flowClient := flowapi.NewHTTPClient(flowapi.HTTPClientConfig{
		BaseURL: config.FlowAPIURL,
		APIKey:  config.FlowAPIKey,
	})
	flowService := flow.NewService(logger, registry, flowClient, apiBreaker)

	return &API{
		logger:        logger,
		config:        config,
		ingestor:      ingestor,
		registry:      registry,
		searchService: searchService,
		flowService:   flowService,
		breakers:      []*breaker.Breaker{embedBreaker, indexBreaker, apiBreaker},
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// RefreshCatalog re-reads the descriptor snapshot and rebuilds the vector
// collections and registry.
func (a *API) RefreshCatalog(ctx context.Context, snapshotPath string) (*catalog.Stats, error) {
	if snapshotPath == "" {
		snapshotPath = a.config.CatalogPath
	}

	snapshot, err := catalog.LoadSnapshot(snapshotPath)
	if err != nil {
		return nil, err
	}

	return a.ingestor.Ingest(ctx, snapshot)
}

// SubscribeRefreshEvents re-ingests the catalog whenever a refresh is
// requested, and announces the result.
func (a *API) SubscribeRefreshEvents(ctx context.Context) error {
	err := a.config.EventBus.Handle(events.CatalogRefreshRequestedEvent, func(ctx context.Context, event any) error {
		request, ok := event.(*events.CatalogRefreshRequested)
		if !ok {
			return nil
		}

		a.logger.InfoContext(ctx, "Catalog refresh requested", "reason", request.Reason)

		started := time.Now()

		stats, err := a.RefreshCatalog(ctx, request.SnapshotPath)
		if err != nil {
			a.logger.ErrorContext(ctx, "Catalog refresh failed", "error", err)

			return err
		}

		refreshed := events.NewCatalogRefreshed(stats.NodeCount, stats.TemplateCount, time.Since(started))

		return a.config.EventBus.Publish(ctx, "catalog", refreshed)
	})
	if err != nil {
		return err
	}

	return a.config.EventBus.Subscribe(ctx)
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.searchService, a.flowService, a.registry,
		a.config.StateStore, a.breakers, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowvector API")
	})

	s := app.Group("/search")
	s.Post("/nodes", handlers.SearchNodes)
	s.Post("/templates", handlers.SearchTemplates)

	app.Post("/flows", handlers.BuildFlow)
	app.Get("/circuits", handlers.GetCircuits)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	stats, err := a.RefreshCatalog(ctx, "")
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Catalog ingested",
		"nodes", stats.NodeCount, "templates", stats.TemplateCount)

	if err := a.SubscribeRefreshEvents(ctx); err != nil {
		return err
	}

	return a.App().Listen(":" + strconv.Itoa(port))
}
