package model

import (
	"time"

	"github.com/google/uuid"
)

// ClickEvent is one recorded observation of a successful redirect.
// Events are written once and never mutated; they are deleted only by the
// cascade when the owning link is deleted.
type ClickEvent struct {
	ID         uuid.UUID `json:"id"`
	LinkID     uuid.UUID `json:"link_id"`
	OccurredAt time.Time `json:"occurred_at"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
}
