package clicks

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// wireEvent is the broker message format shared by Publisher and Consumer.
type wireEvent struct {
	LinkID     uuid.UUID `json:"link_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Metadata   Metadata  `json:"metadata"`
}

// Publisher is the broker-backed Tracker: click observations are enqueued
// to a durable RabbitMQ queue and persisted by the analytics worker.
// Publishing happens on a single goroutine (amqp channels are not safe for
// concurrent publish); Track itself is a non-blocking send.
type Publisher struct {
	ch        *amqp.Channel
	queueName string
	logger    *slog.Logger

	pending chan wireEvent
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	dropped metric.Int64Counter
}

// NewPublisher creates and starts a publisher on an already-declared queue.
func NewPublisher(ch *amqp.Channel, queueName string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	dropped, _ := meter.Int64Counter("hoplink_clicks_dropped_total",
		metric.WithDescription("Click events dropped after queue overflow or retry exhaustion"))

	p := &Publisher{
		ch:        ch,
		queueName: queueName,
		logger:    logger,
		pending:   make(chan wireEvent, queueSize),
		done:      make(chan struct{}),
		dropped:   dropped,
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Track enqueues a click for publishing. It never blocks the caller.
func (p *Publisher) Track(linkID uuid.UUID, meta Metadata) {
	ev := wireEvent{LinkID: linkID, OccurredAt: time.Now().UTC(), Metadata: meta}
	select {
	case <-p.done:
	case p.pending <- ev:
		return
	default:
		p.logger.Warn("click publish queue full, dropping event",
			slog.String("link_id", linkID.String()))
		p.dropped.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("reason", "queue_full")))
	}
}

// Close stops the publisher after flushing buffered events.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Publisher) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			for {
				select {
				case ev := <-p.pending:
					p.publish(ev)
				default:
					return
				}
			}
		case ev := <-p.pending:
			p.publish(ev)
		}
	}
}

func (p *Publisher) publish(ev wireEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.logger.Error("dropping click event, publish failed",
			slog.String("link_id", ev.LinkID.String()),
			slog.String("error", err.Error()))
		p.dropped.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", "publish")))
	}
}

var _ Tracker = (*Publisher)(nil)
