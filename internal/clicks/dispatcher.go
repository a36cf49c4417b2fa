package clicks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hopnet-labs/hoplink/internal/model"
)

// Dispatcher is the in-process Tracker: a buffered queue drained by a
// worker pool. Track is a non-blocking send; when the queue is full the
// click is dropped with a log line and a metric rather than delaying the
// redirect.
type Dispatcher struct {
	events      EventWriter
	counts      CounterIncrementer
	logger      *slog.Logger
	maxAttempts int

	queue chan job
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	tracked metric.Int64Counter
	dropped metric.Int64Counter
}

type job struct {
	linkID     uuid.UUID
	meta       Metadata
	occurredAt time.Time
}

// DispatcherOptions configures the dispatcher. Zero values fall back to
// sensible defaults.
type DispatcherOptions struct {
	QueueSize   int
	Workers     int
	MaxAttempts int
}

// NewDispatcher creates and starts a dispatcher.
func NewDispatcher(events EventWriter, counts CounterIncrementer, logger *slog.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	tracked, _ := meter.Int64Counter("hoplink_clicks_tracked_total",
		metric.WithDescription("Click events durably recorded"))
	dropped, _ := meter.Int64Counter("hoplink_clicks_dropped_total",
		metric.WithDescription("Click events dropped after queue overflow or retry exhaustion"))

	d := &Dispatcher{
		events:      events,
		counts:      counts,
		logger:      logger,
		maxAttempts: opts.MaxAttempts,
		queue:       make(chan job, opts.QueueSize),
		done:        make(chan struct{}),
		tracked:     tracked,
		dropped:     dropped,
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Track enqueues a click observation. It never blocks: a full queue drops
// the observation.
func (d *Dispatcher) Track(linkID uuid.UUID, meta Metadata) {
	j := job{linkID: linkID, meta: meta, occurredAt: time.Now().UTC()}
	select {
	case <-d.done:
		// Shutting down; late clicks are dropped.
	case d.queue <- j:
		return
	default:
		d.logger.Warn("click queue full, dropping event",
			slog.String("link_id", linkID.String()))
		d.dropped.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("reason", "queue_full")))
	}
}

// Close stops accepting clicks, drains the buffered queue and waits for
// the workers to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			// Drain whatever is already buffered, then exit.
			for {
				select {
				case j := <-d.queue:
					d.process(j)
				default:
					return
				}
			}
		case j := <-d.queue:
			d.process(j)
		}
	}
}

// process performs the two tracking writes. The writes are independent:
// the event insert is attempted first, but its failure neither blocks the
// counter increment nor gets rolled back if the increment fails.
func (d *Dispatcher) process(j job) {
	ctx := context.Background()

	event := &model.ClickEvent{
		ID:         uuid.New(),
		LinkID:     j.linkID,
		OccurredAt: j.occurredAt,
		UserAgent:  j.meta.UserAgent,
		Referrer:   j.meta.Referrer,
		SourceIP:   j.meta.SourceIP,
	}

	insertErr := retryWrite(ctx, d.logger, d.maxAttempts, "event_insert", func(ctx context.Context) error {
		return d.events.Insert(ctx, event)
	})
	if insertErr != nil {
		d.logger.Error("dropping click event after retries",
			slog.String("link_id", j.linkID.String()),
			slog.String("error", insertErr.Error()))
		d.dropped.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", "event_insert")))
	}

	incErr := retryWrite(ctx, d.logger, d.maxAttempts, "counter_increment", func(ctx context.Context) error {
		return d.counts.IncrementClickCount(ctx, j.linkID)
	})
	if incErr != nil {
		d.logger.Error("dropping click-count increment after retries",
			slog.String("link_id", j.linkID.String()),
			slog.String("error", incErr.Error()))
		d.dropped.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", "counter_increment")))
	}

	if insertErr == nil && incErr == nil {
		d.tracked.Add(ctx, 1)
	}
}

var _ Tracker = (*Dispatcher)(nil)
