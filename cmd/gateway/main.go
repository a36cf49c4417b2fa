package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hopnet-labs/hoplink/internal/config"
	"github.com/hopnet-labs/hoplink/internal/infra"
	"github.com/hopnet-labs/hoplink/internal/observability"
	"github.com/hopnet-labs/hoplink/internal/server"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Telemetry.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to setup observability: %v", err)
	}
	logger := obs.Logger

	// Connect to database
	db, err := infra.NewPostgresPool(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// Connect to cache. The cache is an optimization; run without it when
	// it is unreachable.
	cache, err := infra.NewCacheClient(ctx, cfg.Cache.ConnectionString())
	if err != nil {
		logger.Warn("cache unavailable, continuing without it",
			slog.String("error", err.Error()))
		cache = nil
	} else {
		defer cache.Close()
	}

	// Optional message broker for click tracking. Empty AMQP_URL keeps
	// clicks in-process.
	var queueCh *amqp.Channel
	if cfg.Queue.URL != "" {
		conn, ch, err := infra.NewQueueChannel(cfg.Queue.URL, cfg.Queue.QueueName)
		if err != nil {
			logger.Error("failed to connect to message broker", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer conn.Close()
		defer ch.Close()
		queueCh = ch
		logger.Info("click events will be published to broker",
			slog.String("queue", cfg.Queue.QueueName))
	}

	srv, closeTracker, err := server.NewServer(cfg, db, cache, queueCh, obs)
	if err != nil {
		logger.Error("failed to build server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("base_url", cfg.App.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	// Wait for interrupt signal (Ctrl+C or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	// Drain pending click writes before telemetry goes away.
	closeTracker()
	obs.Shutdown(shutdownCtx)

	logger.Info("server exited gracefully")
}
