package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hopnet-labs/hoplink/internal/clicks"
	"github.com/hopnet-labs/hoplink/internal/config"
	"github.com/hopnet-labs/hoplink/internal/infra"
	"github.com/hopnet-labs/hoplink/internal/observability"
	"github.com/hopnet-labs/hoplink/internal/repository"
)

// The analytics worker drains the click-event queue and applies the
// tracking writes the gateway deferred: one click_events row plus one
// click-count increment per message, each bounded-retried independently.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Queue.URL == "" {
		log.Fatal("AMQP_URL is required for the analytics worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:  "hoplink-worker",
		Environment:  cfg.Telemetry.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to setup observability: %v", err)
	}
	logger := obs.Logger

	db, err := infra.NewPostgresPool(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	conn, ch, err := infra.NewQueueChannel(cfg.Queue.URL, cfg.Queue.QueueName)
	if err != nil {
		logger.Error("failed to connect to message broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()
	defer ch.Close()

	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickEventRepository(db)
	consumer := clicks.NewConsumer(ch, cfg.Queue.QueueName, clickRepo, linkRepo, logger, cfg.App.ClickMaxAttempts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})

	logger.Info("analytics worker started", slog.String("queue", cfg.Queue.QueueName))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.String("error", err.Error()))
		obs.Shutdown(context.Background())
		os.Exit(1)
	}

	obs.Shutdown(context.Background())
	logger.Info("worker exited gracefully")
}
