// Package clicks records analytics observations for resolved redirects.
// Tracking is fire-and-forget: implementations never block the redirect
// path and never surface failures to it. Each tracking attempt performs
// two independent best-effort writes (the click event insert and the
// click counter increment), each with its own bounded retry.
package clicks

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/hopnet-labs/hoplink/internal/model"
)

var meter = otel.Meter("github.com/hopnet-labs/hoplink/internal/clicks")

// Metadata carries optional request-derived fields for a click event.
// All fields may be empty; the event is valid without them.
type Metadata struct {
	UserAgent string `json:"user_agent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	SourceIP  string `json:"source_ip,omitempty"`
}

// Tracker schedules a click-tracking side effect. Implementations must
// return immediately; the caller's response is already decided.
type Tracker interface {
	Track(linkID uuid.UUID, meta Metadata)
}

// EventWriter persists one click event.
type EventWriter interface {
	Insert(ctx context.Context, event *model.ClickEvent) error
}

// CounterIncrementer bumps a link's click counter by one.
type CounterIncrementer interface {
	IncrementClickCount(ctx context.Context, id uuid.UUID) error
}

// NoopTracker discards all clicks. Used in tests and as a safe default.
type NoopTracker struct{}

func (NoopTracker) Track(uuid.UUID, Metadata) {}
