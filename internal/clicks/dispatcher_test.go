package clicks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopnet-labs/hoplink/internal/model"
)

// fakeEventStore counts inserts and can fail a configurable number of
// times per call sequence.
type fakeEventStore struct {
	mu       sync.Mutex
	events   []*model.ClickEvent
	failures int // attempts to reject before succeeding
	attempts int
}

func (f *fakeEventStore) Insert(ctx context.Context, event *model.ClickEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("insert unavailable")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeEventStore) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

type fakeCounter struct {
	mu         sync.Mutex
	increments map[uuid.UUID]int
	failures   int
	attempts   int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{increments: make(map[uuid.UUID]int)}
}

func (f *fakeCounter) IncrementClickCount(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("increment unavailable")
	}
	f.increments[id]++
	return nil
}

func (f *fakeCounter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.increments {
		total += n
	}
	return total
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDispatcher_TracksBothWrites(t *testing.T) {
	events := &fakeEventStore{}
	counts := newFakeCounter()
	d := NewDispatcher(events, counts, testLogger(), DispatcherOptions{QueueSize: 16, Workers: 2})

	linkID := uuid.New()
	meta := Metadata{UserAgent: "test-agent", Referrer: "https://ref.example", SourceIP: "203.0.113.9"}

	for i := 0; i < 5; i++ {
		d.Track(linkID, meta)
	}
	d.Close()

	assert.Equal(t, 5, events.count(), "every tracked click gets an event")
	assert.Equal(t, 5, counts.total(), "every tracked click increments the counter")

	ev := events.events[0]
	assert.Equal(t, linkID, ev.LinkID)
	assert.Equal(t, "test-agent", ev.UserAgent)
	assert.Equal(t, "https://ref.example", ev.Referrer)
	assert.Equal(t, "203.0.113.9", ev.SourceIP)
	assert.WithinDuration(t, time.Now(), ev.OccurredAt, 5*time.Second)
	assert.NotEqual(t, uuid.Nil, ev.ID)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	events := &fakeEventStore{failures: 2}
	counts := newFakeCounter()
	d := NewDispatcher(events, counts, testLogger(), DispatcherOptions{QueueSize: 4, Workers: 1, MaxAttempts: 3})

	d.Track(uuid.New(), Metadata{})
	d.Close()

	assert.Equal(t, 1, events.count(), "insert succeeds on the final attempt")
	assert.Equal(t, 3, events.attemptCount())
	assert.Equal(t, 1, counts.total())
}

func TestDispatcher_WritesAreIndependent(t *testing.T) {
	t.Run("event insert exhaustion does not block the increment", func(t *testing.T) {
		events := &fakeEventStore{failures: 100}
		counts := newFakeCounter()
		d := NewDispatcher(events, counts, testLogger(), DispatcherOptions{QueueSize: 4, Workers: 1, MaxAttempts: 2})

		d.Track(uuid.New(), Metadata{})
		d.Close()

		assert.Zero(t, events.count(), "insert dropped after bounded retries")
		assert.Equal(t, 2, events.attemptCount(), "retry budget respected")
		assert.Equal(t, 1, counts.total(), "increment still attempted")
	})

	t.Run("increment exhaustion does not roll back the event", func(t *testing.T) {
		events := &fakeEventStore{}
		counts := newFakeCounter()
		counts.failures = 100
		d := NewDispatcher(events, counts, testLogger(), DispatcherOptions{QueueSize: 4, Workers: 1, MaxAttempts: 2})

		d.Track(uuid.New(), Metadata{})
		d.Close()

		assert.Equal(t, 1, events.count(), "event stays recorded")
		assert.Zero(t, counts.total())
		assert.Equal(t, 2, counts.attempts)
	})
}

func TestDispatcher_TrackNeverBlocks(t *testing.T) {
	// A single worker stalled on retries while the queue is full: Track
	// must still return immediately and drop the overflow.
	events := &fakeEventStore{failures: 1 << 20}
	counts := newFakeCounter()
	d := NewDispatcher(events, counts, testLogger(), DispatcherOptions{QueueSize: 1, Workers: 1, MaxAttempts: 3})
	defer d.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			d.Track(uuid.New(), Metadata{})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Track blocked on a saturated queue")
	}
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	events := &fakeEventStore{}
	counts := newFakeCounter()
	d := NewDispatcher(events, counts, testLogger(), DispatcherOptions{QueueSize: 64, Workers: 4})

	for i := 0; i < 40; i++ {
		d.Track(uuid.New(), Metadata{})
	}
	d.Close()

	require.Equal(t, 40, events.count(), "buffered clicks are flushed on close")
	assert.Equal(t, 40, counts.total())
}

func TestDispatcher_CounterNeverDecrements(t *testing.T) {
	events := &fakeEventStore{}
	counts := newFakeCounter()
	d := NewDispatcher(events, counts, testLogger(), DispatcherOptions{QueueSize: 128, Workers: 8})

	linkID := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				d.Track(linkID, Metadata{})
			}
		}()
	}
	wg.Wait()
	d.Close()

	// Some clicks may be dropped under overflow, but the counter moves in
	// one direction only and never exceeds the tracked total.
	total := counts.total()
	assert.GreaterOrEqual(t, total, 0)
	assert.LessOrEqual(t, total, 100)
	assert.Equal(t, events.count(), total, "event count and counter agree when nothing fails")
}
