package model

import (
	"time"

	"github.com/google/uuid"
)

// Link is the unit of redirection: a short code mapped to a target URL
// with lifecycle fields. TargetURL is stored exactly as submitted and is
// immutable after creation.
type Link struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    *uuid.UUID `json:"owner_id,omitempty"` // nil for guest-created links
	ShortCode  string     `json:"short_code"`
	TargetURL  string     `json:"target_url"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ClickCount int64      `json:"click_count"`
}

// Expired reports whether the link's expiry, if any, has passed.
func (l *Link) Expired() bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(time.Now())
}

// Resolvable reports whether a redirect may be served for this link.
func (l *Link) Resolvable() bool {
	return l.Active && !l.Expired()
}

// CreateLinkRequest represents the request body for creating a short link
type CreateLinkRequest struct {
	URL       string     `json:"url" binding:"required"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"`
	ExpiresIn int        `json:"expires_in,omitempty"` // Duration in days; ignored for guest links
}

// CreateLinkResponse represents the response for a created short link
type CreateLinkResponse struct {
	ID        uuid.UUID `json:"id"`
	ShortCode string    `json:"short_code"`
	ShortURL  string    `json:"short_url"`
	ExpiresAt string    `json:"expires_at,omitempty"`
}

// LinkResponse represents the full link metadata response
type LinkResponse struct {
	ID         uuid.UUID `json:"id"`
	ShortCode  string    `json:"short_code"`
	TargetURL  string    `json:"target_url"`
	ShortURL   string    `json:"short_url"`
	Active     bool      `json:"active"`
	CreatedAt  string    `json:"created_at"`
	ExpiresAt  string    `json:"expires_at,omitempty"`
	ClickCount int64     `json:"click_count"`
}

// SetActiveRequest represents the request body for toggling a link's
// active flag.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
