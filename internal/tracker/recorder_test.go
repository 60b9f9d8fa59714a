package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftmail/beacon/internal/errs"
	"github.com/driftmail/beacon/internal/models"
	"github.com/driftmail/beacon/internal/storage"
)

func newTestRecorder(t *testing.T) (*Recorder, *storage.InMemoryEmailRepo, *storage.InMemoryEventStore) {
	t.Helper()
	emails := storage.NewInMemoryEmailRepo()
	events := storage.NewInMemoryEventStore()
	return NewRecorder(emails, events, zap.NewNop()), emails, events
}

func seedEmail(t *testing.T, emails *storage.InMemoryEmailRepo, trackingID string) *models.Email {
	t.Helper()
	email := &models.Email{
		ID:         "email-" + trackingID,
		TrackingID: trackingID,
		Recipient:  "to@example.com",
		Sender:     "from@example.com",
		Subject:    "hello",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, emails.Create(context.Background(), email))
	return email
}

func TestRecordOpen(t *testing.T) {
	rec, emails, events := newTestRecorder(t)
	email := seedEmail(t, emails, "tid1")

	actor := ActorInfo{
		IPAddress: "10.0.0.1",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36",
	}
	ev, err := rec.RecordOpen(context.Background(), "tid1", actor)
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, email.ID, ev.EmailID)
	assert.Equal(t, models.EventOpen, ev.EventType)
	assert.Equal(t, "10.0.0.1", ev.IPAddress)
	assert.Equal(t, "desktop", ev.DeviceType)
	assert.False(t, ev.CreatedAt.IsZero())

	stored, err := events.ListByEmail(context.Background(), email.ID, "")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, ev.ID, stored[0].ID)
}

func TestRecordOpen_UnknownTrackingID(t *testing.T) {
	rec, _, _ := newTestRecorder(t)

	_, err := rec.RecordOpen(context.Background(), "nope", ActorInfo{})
	require.Error(t, err)

	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRecordOpen_RepeatedHitsAllStored(t *testing.T) {
	rec, emails, events := newTestRecorder(t)
	email := seedEmail(t, emails, "tid1")

	actor := ActorInfo{IPAddress: "10.0.0.1"}
	for i := 0; i < 3; i++ {
		_, err := rec.RecordOpen(context.Background(), "tid1", actor)
		require.NoError(t, err)
	}

	stored, err := events.ListByEmail(context.Background(), email.ID, "")
	require.NoError(t, err)
	assert.Len(t, stored, 3, "write path never deduplicates")
}

func TestRecordClick(t *testing.T) {
	rec, emails, _ := newTestRecorder(t)
	seedEmail(t, emails, "tid1")

	ev, err := rec.RecordClick(context.Background(), "tid1", "https://example.com/offer", ActorInfo{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, models.EventClick, ev.EventType)
	assert.Equal(t, "https://example.com/offer", ev.ClickedURL)
}

func TestRecordClick_MissingURL(t *testing.T) {
	rec, emails, events := newTestRecorder(t)
	email := seedEmail(t, emails, "tid1")

	_, err := rec.RecordClick(context.Background(), "tid1", "", ActorInfo{})
	require.Error(t, err)

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "clicked_url", ve.Field)

	stored, err := events.ListByEmail(context.Background(), email.ID, "")
	require.NoError(t, err)
	assert.Empty(t, stored, "validation failure must not record anything")
}

func TestRecordClick_MissingURLBeatsUnknownID(t *testing.T) {
	rec, _, _ := newTestRecorder(t)

	// Validation is checked before the identifier is resolved.
	_, err := rec.RecordClick(context.Background(), "nope", "", ActorInfo{})
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRecordCustom(t *testing.T) {
	rec, emails, _ := newTestRecorder(t)
	seedEmail(t, emails, "tid1")

	ev, err := rec.RecordCustom(context.Background(), "tid1", models.EventBounce, ActorInfo{}, "")
	require.NoError(t, err)
	assert.Equal(t, models.EventBounce, ev.EventType)

	// Arbitrary kinds are accepted as-is.
	ev, err = rec.RecordCustom(context.Background(), "tid1", "forwarded", ActorInfo{}, "")
	require.NoError(t, err)
	assert.Equal(t, "forwarded", ev.EventType)
}

func TestRecordCustom_EmptyKind(t *testing.T) {
	rec, emails, _ := newTestRecorder(t)
	seedEmail(t, emails, "tid1")

	_, err := rec.RecordCustom(context.Background(), "tid1", "", ActorInfo{}, "")
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "event_type", ve.Field)
}

func TestRecordCustom_ClickKindKeepsURLRequirement(t *testing.T) {
	rec, emails, _ := newTestRecorder(t)
	seedEmail(t, emails, "tid1")

	_, err := rec.RecordCustom(context.Background(), "tid1", models.EventClick, ActorInfo{}, "")
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "clicked_url", ve.Field)

	ev, err := rec.RecordCustom(context.Background(), "tid1", models.EventClick, ActorInfo{}, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, models.EventClick, ev.EventType)
	assert.Equal(t, "https://example.com", ev.ClickedURL)
}

func TestRecord_DeviceTypeOnlyWithUserAgent(t *testing.T) {
	rec, emails, _ := newTestRecorder(t)
	seedEmail(t, emails, "tid1")

	ev, err := rec.RecordOpen(context.Background(), "tid1", ActorInfo{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Empty(t, ev.DeviceType, "no user agent means no device classification")

	ev, err = rec.RecordOpen(context.Background(), "tid1", ActorInfo{UserAgent: "Mozilla/5.0 (iPhone) Safari/604.1"})
	require.NoError(t, err)
	assert.Equal(t, "mobile", ev.DeviceType)
}

func TestRecord_EventOrderPreserved(t *testing.T) {
	rec, emails, events := newTestRecorder(t)
	email := seedEmail(t, emails, "tid1")

	kinds := []string{models.EventOpen, models.EventClick, models.EventOpen, models.EventUnsubscribe}
	for _, kind := range kinds {
		_, err := rec.RecordCustom(context.Background(), "tid1", kind, ActorInfo{}, "https://example.com")
		require.NoError(t, err)
	}

	stored, err := events.ListByEmail(context.Background(), email.ID, "")
	require.NoError(t, err)
	require.Len(t, stored, len(kinds))
	for i, kind := range kinds {
		assert.Equal(t, kind, stored[i].EventType, "events must come back in recording order")
	}
}
