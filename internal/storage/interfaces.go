package storage

import (
	"context"

	"github.com/driftmail/beacon/internal/models"
)

// =============================================
// EMAIL REPOSITORY
// =============================================

// EmailRepo defines operations for sent-email storage. Lookups return
// (nil, nil) when no row matches; callers translate that into their own
// not-found error.
type EmailRepo interface {
	Create(ctx context.Context, e *models.Email) error
	GetByID(ctx context.Context, id string) (*models.Email, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*models.Email, error)
	// List returns the filtered page plus the total count of matching rows.
	List(ctx context.Context, f models.EmailFilter) ([]*models.Email, int64, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]*models.Email, error)
	Update(ctx context.Context, e *models.Email) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// =============================================
// CAMPAIGN REPOSITORY
// =============================================

// CampaignRepo defines operations for campaign storage.
type CampaignRepo interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, f models.CampaignFilter) ([]*models.Campaign, error)
	ListAll(ctx context.Context) ([]*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// =============================================
// EVENT STORE
// =============================================

// GlobalEventCounts holds system-wide event aggregates computed by the
// store in one pass.
type GlobalEventCounts struct {
	TotalEvents       int64
	TotalOpens        int64
	TotalClicks       int64
	UniqueOpenEmails  int64 // distinct emails with at least one open
	UniqueClickEmails int64 // distinct emails with at least one click
	DeviceBreakdown   map[string]int64
}

// EventStore defines operations for append-only tracking events.
type EventStore interface {
	// Append persists one event row and assigns its insertion sequence.
	// It never merges with or overwrites existing rows.
	Append(ctx context.Context, ev *models.TrackingEvent) error
	// ListByEmail returns events for one email ordered by creation time
	// ascending, insertion order breaking ties. An empty eventType means
	// all kinds.
	ListByEmail(ctx context.Context, emailID, eventType string) ([]*models.TrackingEvent, error)
	// DeleteByEmail removes all events of one email (cascade on email
	// deletion).
	DeleteByEmail(ctx context.Context, emailID string) error
	GlobalCounts(ctx context.Context) (GlobalEventCounts, error)
}
