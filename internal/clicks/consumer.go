package clicks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hopnet-labs/hoplink/internal/model"
)

// Consumer drains the click-event queue in the analytics worker and
// applies the same two store writes as the in-process dispatcher, through
// the same bounded retry policy. Messages are acked once the retry budget
// is spent, successful or not: a click that cannot be stored after the
// bound is dropped, never re-queued onto anyone's critical path.
type Consumer struct {
	ch          *amqp.Channel
	queueName   string
	events      EventWriter
	counts      CounterIncrementer
	logger      *slog.Logger
	maxAttempts int

	tracked metric.Int64Counter
	dropped metric.Int64Counter
}

// NewConsumer creates a consumer on an already-declared queue.
func NewConsumer(ch *amqp.Channel, queueName string, events EventWriter, counts CounterIncrementer, logger *slog.Logger, maxAttempts int) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	tracked, _ := meter.Int64Counter("hoplink_clicks_tracked_total",
		metric.WithDescription("Click events durably recorded"))
	dropped, _ := meter.Int64Counter("hoplink_clicks_dropped_total",
		metric.WithDescription("Click events dropped after queue overflow or retry exhaustion"))

	return &Consumer{
		ch:          ch,
		queueName:   queueName,
		events:      events,
		counts:      counts,
		logger:      logger,
		maxAttempts: maxAttempts,
		tracked:     tracked,
		dropped:     dropped,
	}
}

// Run consumes until the context is canceled or the delivery channel
// closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(
		c.queueName,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	c.logger.Info("consuming click events", slog.String("queue", c.queueName))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var ev wireEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.logger.Error("discarding malformed click message",
			slog.String("error", err.Error()))
		_ = d.Nack(false, false)
		return
	}

	event := &model.ClickEvent{
		ID:         uuid.New(),
		LinkID:     ev.LinkID,
		OccurredAt: ev.OccurredAt,
		UserAgent:  ev.Metadata.UserAgent,
		Referrer:   ev.Metadata.Referrer,
		SourceIP:   ev.Metadata.SourceIP,
	}

	insertErr := retryWrite(ctx, c.logger, c.maxAttempts, "event_insert", func(ctx context.Context) error {
		return c.events.Insert(ctx, event)
	})
	if insertErr != nil {
		c.logger.Error("dropping click event after retries",
			slog.String("link_id", ev.LinkID.String()),
			slog.String("error", insertErr.Error()))
		c.dropped.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", "event_insert")))
	}

	incErr := retryWrite(ctx, c.logger, c.maxAttempts, "counter_increment", func(ctx context.Context) error {
		return c.counts.IncrementClickCount(ctx, ev.LinkID)
	})
	if incErr != nil {
		c.logger.Error("dropping click-count increment after retries",
			slog.String("link_id", ev.LinkID.String()),
			slog.String("error", incErr.Error()))
		c.dropped.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", "counter_increment")))
	}

	if insertErr == nil && incErr == nil {
		c.tracked.Add(ctx, 1)
	}

	// Retry budget spent either way; acknowledge so the message is not
	// redelivered.
	_ = d.Ack(false)
}
