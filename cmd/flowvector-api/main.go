package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/flowvector/flowvector/pkg/cmd"
	"github.com/flowvector/flowvector/pkg/embedding"
	"github.com/flowvector/flowvector/pkg/log"
	"github.com/flowvector/flowvector/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowvector-api",
		Usage:                 "Search the node catalog and build flows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "state-store-url",
				Usage:    "Circuit state store URL (file path, redis:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("STATE_STORE_URL"),
			},
			&cli.StringFlag{
				Name:     "catalog-path",
				Usage:    "Path to the descriptor snapshot ingested at startup and on refresh",
				Required: true,
				Sources:  cli.EnvVars("CATALOG_PATH"),
			},
			&cli.StringFlag{
				Name:     "embedding-url",
				Usage:    "Base URL of the OpenAI-compatible embeddings endpoint",
				Required: true,
				Sources:  cli.EnvVars("EMBEDDING_URL"),
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				Value:   "all-minilm",
				Sources: cli.EnvVars("EMBEDDING_MODEL"),
			},
			&cli.IntFlag{
				Name:    "embedding-dimensions",
				Usage:   "Vector length the embedding model produces",
				Sources: cli.EnvVars("EMBEDDING_DIMENSIONS"),
			},
			&cli.StringFlag{
				Name:     "flow-api-url",
				Usage:    "Base URL of the remote flow execution API",
				Required: true,
				Sources:  cli.EnvVars("FLOW_API_URL"),
			},
			&cli.StringFlag{
				Name:    "flow-api-key",
				Usage:   "Bearer token for the remote flow execution API",
				Sources: cli.EnvVars("FLOW_API_KEY"),
			},
			&cli.FloatFlag{
				Name:    "min-similarity",
				Usage:   "Minimum similarity for search results",
				Sources: cli.EnvVars("MIN_SIMILARITY"),
			},
			&cli.IntFlag{
				Name:    "failure-threshold",
				Usage:   "Consecutive failures before a circuit opens",
				Sources: cli.EnvVars("CIRCUIT_FAILURE_THRESHOLD"),
			},
			&cli.DurationFlag{
				Name:    "reset-timeout",
				Usage:   "Cooldown before an open circuit admits a trial call",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("CIRCUIT_RESET_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider for catalog refresh events (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces (endpoint via OTEL_EXPORTER_OTLP_ENDPOINT)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowvector API")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "flowvector-api"); err != nil {
					return err
				}
			}

			stateStore, err := cmd.NewStateStore(ctx, logger, command.String("state-store-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := stateStore.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close state store", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "flowvector-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			embedder := embedding.NewHTTPProvider(logger, embedding.HTTPProviderConfig{
				BaseURL:    command.String("embedding-url"),
				Model:      command.String("embedding-model"),
				Dimensions: int(command.Int("embedding-dimensions")),
			})

			api, err := NewAPI(ctx, logger, Config{
				StateStore:       stateStore,
				EventBus:         eventBus,
				Embedder:         embedder,
				CatalogPath:      command.String("catalog-path"),
				FlowAPIURL:       command.String("flow-api-url"),
				FlowAPIKey:       command.String("flow-api-key"),
				MinSimilarity:    command.Float("min-similarity"),
				FailureThreshold: int(command.Int("failure-threshold")),
				ResetTimeout:     command.Duration("reset-timeout"),
			})
			if err != nil {
				return err
			}

			return api.Start(ctx, int(command.Int("port")))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
