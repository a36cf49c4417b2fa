package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/hopnet-labs/hoplink/internal/api"
	"github.com/hopnet-labs/hoplink/internal/clicks"
	"github.com/hopnet-labs/hoplink/internal/config"
	"github.com/hopnet-labs/hoplink/internal/middleware"
	"github.com/hopnet-labs/hoplink/internal/observability"
	"github.com/hopnet-labs/hoplink/internal/repository"
	"github.com/hopnet-labs/hoplink/internal/service"
)

// redisPinger adapts *redis.Client to api.CacheInterface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Closer releases resources owned by the router wiring (currently the
// click tracker, which must drain before the process exits).
type Closer func()

// NewRouter initializes all dependencies and returns a configured Gin
// router plus a Closer that drains the click tracker. The amqp channel is
// optional: when nil, clicks are tracked by the in-process dispatcher.
func NewRouter(cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, queueCh *amqp.Channel, obs *observability.Observability) (*gin.Engine, Closer, error) {
	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickEventRepository(db)
	cachedRepo := repository.NewCachedLinkRepository(linkRepo, cache, cfg.Cache.TTL, obs.Logger)

	var tracker clicks.Tracker
	var closer Closer
	if queueCh != nil {
		p := clicks.NewPublisher(queueCh, cfg.Queue.QueueName, cfg.App.ClickQueueSize, obs.Logger)
		tracker = p
		closer = p.Close
	} else {
		d := clicks.NewDispatcher(clickRepo, linkRepo, obs.Logger, clicks.DispatcherOptions{
			QueueSize:   cfg.App.ClickQueueSize,
			Workers:     cfg.App.ClickWorkers,
			MaxAttempts: cfg.App.ClickMaxAttempts,
		})
		tracker = d
		closer = d.Close
	}

	linkService := service.NewLinkService(cachedRepo, tracker, service.Options{
		BaseURL:          cfg.App.BaseURL,
		ShortCodeLen:     cfg.App.ShortCodeLen,
		ShortCodeRetries: cfg.App.ShortCodeRetries,
		GuestLinkExpiry:  cfg.App.GuestLinkExpiry,
		LookupTimeout:    cfg.App.LookupTimeout,
	})
	handler := api.NewHandler(linkService, db, &redisPinger{client: cache}, obs.Logger)

	rateLimit, err := middleware.RateLimit(cache, cfg.App.RateLimit)
	if err != nil {
		closer()
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	r.Use(middleware.Logging(obs.Logger))

	handler.RegisterRoutes(r, obs.MetricsHandler, rateLimit)
	return r, closer, nil
}

// NewServer initializes all dependencies and returns a configured HTTP
// server plus the wiring Closer. This includes the router plus HTTP server
// settings (timeouts, address, etc.).
func NewServer(cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, queueCh *amqp.Channel, obs *observability.Observability) (*http.Server, Closer, error) {
	router, closer, err := NewRouter(cfg, db, cache, queueCh, obs)
	if err != nil {
		return nil, nil, err
	}

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, closer, nil
}
