package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftmail/beacon/internal/errs"
	"github.com/driftmail/beacon/internal/models"
	"github.com/driftmail/beacon/internal/storage"
)

// ActorInfo is the metadata extracted from an inbound tracking request.
// Location is an opaque pass-through string; it is never computed here.
type ActorInfo struct {
	IPAddress string
	UserAgent string
	Location  string
}

// Recorder resolves tracking identifiers to emails and appends tracking
// events. It never deduplicates at write time: repeated identical hits
// produce repeated rows, and the aggregation layer separates totals
// from uniques.
type Recorder struct {
	emails storage.EmailRepo
	events storage.EventStore
	logger *zap.Logger
}

// NewRecorder constructs a Recorder with explicit dependencies.
func NewRecorder(emails storage.EmailRepo, events storage.EventStore, logger *zap.Logger) *Recorder {
	return &Recorder{
		emails: emails,
		events: events,
		logger: logger,
	}
}

// RecordOpen records an email open event. Returns NotFoundError when
// the tracking identifier does not resolve.
func (r *Recorder) RecordOpen(ctx context.Context, trackingID string, actor ActorInfo) (*models.TrackingEvent, error) {
	return r.record(ctx, trackingID, models.EventOpen, actor, "")
}

// RecordClick records a link click event. The destination URL is
// required; a missing URL fails with ValidationError before the
// tracking identifier is even resolved.
func (r *Recorder) RecordClick(ctx context.Context, trackingID, clickedURL string, actor ActorInfo) (*models.TrackingEvent, error) {
	if clickedURL == "" {
		return nil, errs.Validation("clicked_url", "clicked_url is required for click events")
	}
	return r.record(ctx, trackingID, models.EventClick, actor, clickedURL)
}

// RecordCustom records an event of an arbitrary kind (bounce,
// unsubscribe, or any custom string). Click-kind events go through the
// click path and keep its URL requirement.
func (r *Recorder) RecordCustom(ctx context.Context, trackingID, eventType string, actor ActorInfo, clickedURL string) (*models.TrackingEvent, error) {
	if eventType == "" {
		return nil, errs.Validation("event_type", "event_type is required")
	}
	if eventType == models.EventClick {
		return r.RecordClick(ctx, trackingID, clickedURL, actor)
	}
	return r.record(ctx, trackingID, eventType, actor, clickedURL)
}

func (r *Recorder) record(ctx context.Context, trackingID, eventType string, actor ActorInfo, clickedURL string) (*models.TrackingEvent, error) {
	email, err := r.emails.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, errs.NotFound("no email with tracking id %s", trackingID)
	}

	var deviceType string
	if actor.UserAgent != "" {
		deviceType = ParseUserAgent(actor.UserAgent).DeviceType
	}

	ev := &models.TrackingEvent{
		ID:         uuid.New().String(),
		EmailID:    email.ID,
		EventType:  eventType,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Location:   actor.Location,
		DeviceType: deviceType,
		ClickedURL: clickedURL,
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.events.Append(ctx, ev); err != nil {
		return nil, err
	}

	r.logger.Debug("event recorded",
		zap.String("event_id", ev.ID),
		zap.String("email_id", email.ID),
		zap.String("event_type", eventType),
		zap.String("device_type", deviceType),
	)

	return ev, nil
}
