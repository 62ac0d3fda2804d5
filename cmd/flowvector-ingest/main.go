// Package main provides the catalog refresh trigger: it publishes refresh
// requests for the API process to act on, one-shot or on a schedule.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/flowvector/flowvector/pkg/cmd"
	"github.com/flowvector/flowvector/pkg/eventbus"
	"github.com/flowvector/flowvector/pkg/events"
	"github.com/flowvector/flowvector/pkg/log"
)

func main() {
	logger := log.WithModule("ingest")

	command := &cli.Command{
		Name:                  "flowvector-ingest",
		Usage:                 "Request catalog refreshes, once or on a schedule",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "snapshot-path",
				Usage:   "Descriptor snapshot path to refresh from; empty uses the API's default",
				Sources: cli.EnvVars("SNAPSHOT_PATH"),
			},
			&cli.StringFlag{
				Name:    "reason",
				Usage:   "Refresh reason recorded on the event",
				Value:   "manual",
				Sources: cli.EnvVars("REFRESH_REASON"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for periodic refresh; empty publishes once and exits",
				Sources: cli.EnvVars("REFRESH_SCHEDULE"),
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

			bus, err := cmd.NewEventBus(command.String("event-bus"), "flowvector-ingest", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			snapshotPath := command.String("snapshot-path")
			reason := command.String("reason")
			schedule := command.String("schedule")

			if schedule == "" {
				return publishRefresh(ctx, logger, bus, reason, snapshotPath)
			}

			scheduler := cron.New()

			_, err = scheduler.AddFunc(schedule, func() {
				if err := publishRefresh(ctx, logger, bus, "cron", snapshotPath); err != nil {
					logger.ErrorContext(ctx, "Failed to publish refresh request", "error", err)
				}
			})
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Scheduling catalog refreshes", "schedule", schedule)
			scheduler.Start()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			<-scheduler.Stop().Done()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func publishRefresh(ctx context.Context, logger *slog.Logger, bus eventbus.EventBus, reason, snapshotPath string) error {
	event := events.NewCatalogRefreshRequested(reason, snapshotPath)

	if err := bus.Publish(ctx, "catalog", event); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Catalog refresh requested", "event_id", event.ID, "reason", reason)

	return nil
}
