package models

import (
	"time"
)

// ===========================================
// EVENT KINDS
// ===========================================

// Well-known event kinds. Any other non-empty string is accepted as a
// custom kind and stored verbatim.
const (
	EventOpen        = "open"
	EventClick       = "click"
	EventBounce      = "bounce"
	EventUnsubscribe = "unsubscribe"
)

// ===========================================
// TRACKING EVENT
// ===========================================

// TrackingEvent is one immutable observation against an email. Events
// are append-only: rows are never updated or merged, and repeated hits
// produce repeated rows. Ordering is creation time ascending with
// insertion order as tie-break (Seq).
type TrackingEvent struct {
	ID        string    `json:"id"`
	EmailID   string    `json:"email_id"`
	EventType string    `json:"event_type"`

	// Actor metadata
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Location   string `json:"location,omitempty"`
	DeviceType string `json:"device_type,omitempty"`

	// Click-specific data
	ClickedURL string `json:"clicked_url,omitempty"`

	Seq       int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
