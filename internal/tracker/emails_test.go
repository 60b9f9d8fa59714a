package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftmail/beacon/internal/errs"
	"github.com/driftmail/beacon/internal/models"
	"github.com/driftmail/beacon/internal/storage"
)

type emailFixture struct {
	emails    *storage.InMemoryEmailRepo
	campaigns *storage.InMemoryCampaignRepo
	events    *storage.InMemoryEventStore
	svc       *EmailService
	campSvc   *CampaignService
}

func newEmailFixture(t *testing.T) *emailFixture {
	t.Helper()
	f := &emailFixture{
		emails:    storage.NewInMemoryEmailRepo(),
		campaigns: storage.NewInMemoryCampaignRepo(),
		events:    storage.NewInMemoryEventStore(),
	}
	f.svc = NewEmailService(f.emails, f.campaigns, f.events, zap.NewNop())
	f.campSvc = NewCampaignService(f.campaigns, zap.NewNop())
	return f
}

func TestEmailService_Create(t *testing.T) {
	f := newEmailFixture(t)

	email, err := f.svc.Create(context.Background(), CreateEmailInput{
		Recipient: "to@example.com",
		Sender:    "from@example.com",
		Subject:   "welcome",
		Body:      "hi there",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, email.ID)
	assert.Len(t, email.TrackingID, TrackingIDLength)
	assert.Equal(t, "to@example.com", email.Recipient)
	assert.False(t, email.SentAt.IsZero())

	// The tracking id must resolve back to the email.
	got, err := f.svc.GetByTrackingID(context.Background(), email.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, email.ID, got.ID)
}

func TestEmailService_Create_InvalidAddresses(t *testing.T) {
	f := newEmailFixture(t)

	tests := []struct {
		name  string
		in    CreateEmailInput
		field string
	}{
		{"bad recipient", CreateEmailInput{Recipient: "nope", Sender: "from@example.com"}, "recipient_email"},
		{"empty recipient", CreateEmailInput{Sender: "from@example.com"}, "recipient_email"},
		{"bad sender", CreateEmailInput{Recipient: "to@example.com", Sender: "bad@"}, "sender_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.in)
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestEmailService_Create_UnknownCampaign(t *testing.T) {
	f := newEmailFixture(t)

	_, err := f.svc.Create(context.Background(), CreateEmailInput{
		Recipient:  "to@example.com",
		Sender:     "from@example.com",
		CampaignID: "missing",
	})
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestEmailService_Create_UniqueTrackingIDs(t *testing.T) {
	f := newEmailFixture(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		email, err := f.svc.Create(context.Background(), CreateEmailInput{
			Recipient: "to@example.com",
			Sender:    "from@example.com",
		})
		require.NoError(t, err)
		_, dup := seen[email.TrackingID]
		require.False(t, dup)
		seen[email.TrackingID] = struct{}{}
	}
}

func TestEmailService_Get_NotFound(t *testing.T) {
	f := newEmailFixture(t)

	_, err := f.svc.Get(context.Background(), "missing")
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestEmailService_List(t *testing.T) {
	f := newEmailFixture(t)

	campaign, err := f.campSvc.Create(context.Background(), CreateCampaignInput{Name: "launch"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), CreateEmailInput{
			Recipient:  "to@example.com",
			Sender:     "from@example.com",
			CampaignID: campaign.ID,
		})
		require.NoError(t, err)
	}
	_, err = f.svc.Create(context.Background(), CreateEmailInput{
		Recipient: "other@example.com",
		Sender:    "from@example.com",
	})
	require.NoError(t, err)

	emails, total, err := f.svc.List(context.Background(), models.EmailFilter{CampaignID: campaign.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, emails, 3)

	// The page can be smaller than the total.
	emails, total, err = f.svc.List(context.Background(), models.EmailFilter{CampaignID: campaign.ID, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, emails, 2)
}

func TestEmailService_Update(t *testing.T) {
	f := newEmailFixture(t)

	email, err := f.svc.Create(context.Background(), CreateEmailInput{
		Recipient: "to@example.com",
		Sender:    "from@example.com",
		Subject:   "before",
	})
	require.NoError(t, err)

	subject := "after"
	updated, err := f.svc.Update(context.Background(), email.ID, UpdateEmailInput{Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Subject)
	assert.Equal(t, email.TrackingID, updated.TrackingID, "tracking id is immutable")
	assert.Equal(t, email.Recipient, updated.Recipient, "nil fields stay unchanged")
}

func TestEmailService_Delete_CascadesEvents(t *testing.T) {
	f := newEmailFixture(t)

	email, err := f.svc.Create(context.Background(), CreateEmailInput{
		Recipient: "to@example.com",
		Sender:    "from@example.com",
	})
	require.NoError(t, err)

	rec := NewRecorder(f.emails, f.events, zap.NewNop())
	_, err = rec.RecordOpen(context.Background(), email.TrackingID, ActorInfo{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), email.ID))

	_, err = f.svc.Get(context.Background(), email.ID)
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)

	events, err := f.events.ListByEmail(context.Background(), email.ID, "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEmailService_Events(t *testing.T) {
	f := newEmailFixture(t)

	email, err := f.svc.Create(context.Background(), CreateEmailInput{
		Recipient: "to@example.com",
		Sender:    "from@example.com",
	})
	require.NoError(t, err)

	rec := NewRecorder(f.emails, f.events, zap.NewNop())
	_, err = rec.RecordOpen(context.Background(), email.TrackingID, ActorInfo{})
	require.NoError(t, err)
	_, err = rec.RecordClick(context.Background(), email.TrackingID, "https://example.com", ActorInfo{})
	require.NoError(t, err)
	_, err = rec.RecordOpen(context.Background(), email.TrackingID, ActorInfo{})
	require.NoError(t, err)

	all, err := f.svc.Events(context.Background(), email.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	opens, err := f.svc.Events(context.Background(), email.ID, models.EventOpen)
	require.NoError(t, err)
	assert.Len(t, opens, 2)

	_, err = f.svc.Events(context.Background(), "missing", "")
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestEmailService_EventsByCampaign(t *testing.T) {
	f := newEmailFixture(t)

	campaign, err := f.campSvc.Create(context.Background(), CreateCampaignInput{Name: "launch"})
	require.NoError(t, err)

	rec := NewRecorder(f.emails, f.events, zap.NewNop())
	var trackingIDs []string
	for i := 0; i < 2; i++ {
		email, err := f.svc.Create(context.Background(), CreateEmailInput{
			Recipient:  "to@example.com",
			Sender:     "from@example.com",
			CampaignID: campaign.ID,
		})
		require.NoError(t, err)
		trackingIDs = append(trackingIDs, email.TrackingID)
	}

	// Interleave events across the two emails.
	_, err = rec.RecordOpen(context.Background(), trackingIDs[0], ActorInfo{})
	require.NoError(t, err)
	_, err = rec.RecordOpen(context.Background(), trackingIDs[1], ActorInfo{})
	require.NoError(t, err)
	_, err = rec.RecordClick(context.Background(), trackingIDs[0], "https://example.com", ActorInfo{})
	require.NoError(t, err)

	all, err := f.svc.EventsByCampaign(context.Background(), campaign.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	opens, err := f.svc.EventsByCampaign(context.Background(), campaign.ID, models.EventOpen)
	require.NoError(t, err)
	assert.Len(t, opens, 2)

	_, err = f.svc.EventsByCampaign(context.Background(), "missing", "")
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
