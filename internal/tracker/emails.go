package tracker

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftmail/beacon/internal/errs"
	"github.com/driftmail/beacon/internal/models"
	"github.com/driftmail/beacon/internal/storage"
)

// EmailService owns the sent-email records. Creating an email mints its
// tracking identifier; the identifier is immutable afterwards.
type EmailService struct {
	emails    storage.EmailRepo
	campaigns storage.CampaignRepo
	events    storage.EventStore
	logger    *zap.Logger
}

func NewEmailService(emails storage.EmailRepo, campaigns storage.CampaignRepo, events storage.EventStore, logger *zap.Logger) *EmailService {
	return &EmailService{
		emails:    emails,
		campaigns: campaigns,
		events:    events,
		logger:    logger,
	}
}

// CreateEmailInput carries the fields for a new sent-email record.
type CreateEmailInput struct {
	Recipient  string `json:"recipient_email"`
	Sender     string `json:"sender_email"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	CampaignID string `json:"campaign_id"`
	TemplateID string `json:"template_id"`
}

// Create validates the input, mints a tracking identifier and stores
// the email.
func (s *EmailService) Create(ctx context.Context, in CreateEmailInput) (*models.Email, error) {
	if !ValidEmailAddress(in.Recipient) {
		return nil, errs.Validation("recipient_email", "incorrect recipient email: %s", in.Recipient)
	}
	if !ValidEmailAddress(in.Sender) {
		return nil, errs.Validation("sender_email", "incorrect sender email: %s", in.Sender)
	}
	if in.CampaignID != "" {
		campaign, err := s.campaigns.GetByID(ctx, in.CampaignID)
		if err != nil {
			return nil, err
		}
		if campaign == nil {
			return nil, errs.NotFound("campaign with id %s not found", in.CampaignID)
		}
	}

	now := time.Now().UTC()
	email := &models.Email{
		ID:         uuid.New().String(),
		TrackingID: NewTrackingID(),
		Recipient:  in.Recipient,
		Sender:     in.Sender,
		Subject:    in.Subject,
		Body:       in.Body,
		CampaignID: in.CampaignID,
		TemplateID: in.TemplateID,
		SentAt:     now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.emails.Create(ctx, email); err != nil {
		return nil, err
	}

	s.logger.Info("email created",
		zap.String("email_id", email.ID),
		zap.String("campaign_id", email.CampaignID),
	)

	return email, nil
}

// Get returns an email by id or NotFoundError.
func (s *EmailService) Get(ctx context.Context, id string) (*models.Email, error) {
	email, err := s.emails.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, errs.NotFound("email not found: %s", id)
	}
	return email, nil
}

// GetByTrackingID resolves a tracking identifier to its email.
func (s *EmailService) GetByTrackingID(ctx context.Context, trackingID string) (*models.Email, error) {
	email, err := s.emails.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, errs.NotFound("no email with tracking id %s", trackingID)
	}
	return email, nil
}

// List returns a filtered page of emails plus the total matching count.
func (s *EmailService) List(ctx context.Context, f models.EmailFilter) ([]*models.Email, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return s.emails.List(ctx, f)
}

// UpdateEmailInput carries optional field updates. Nil means unchanged.
type UpdateEmailInput struct {
	Subject    *string `json:"subject"`
	Body       *string `json:"body"`
	CampaignID *string `json:"campaign_id"`
}

// Update changes mutable email fields. The tracking identifier is never
// touched.
func (s *EmailService) Update(ctx context.Context, id string, in UpdateEmailInput) (*models.Email, error) {
	email, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.CampaignID != nil && *in.CampaignID != "" {
		campaign, err := s.campaigns.GetByID(ctx, *in.CampaignID)
		if err != nil {
			return nil, err
		}
		if campaign == nil {
			return nil, errs.NotFound("campaign not found: %s", *in.CampaignID)
		}
		email.CampaignID = *in.CampaignID
	}
	if in.Subject != nil {
		email.Subject = *in.Subject
	}
	if in.Body != nil {
		email.Body = *in.Body
	}
	email.UpdatedAt = time.Now().UTC()

	if err := s.emails.Update(ctx, email); err != nil {
		return nil, err
	}
	return email, nil
}

// Delete removes an email and cascades to its tracking events.
func (s *EmailService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.events.DeleteByEmail(ctx, id); err != nil {
		return err
	}
	return s.emails.Delete(ctx, id)
}

// Events returns one email's tracking events in creation order,
// optionally filtered by kind.
func (s *EmailService) Events(ctx context.Context, emailID, eventType string) ([]*models.TrackingEvent, error) {
	if _, err := s.Get(ctx, emailID); err != nil {
		return nil, err
	}
	return s.events.ListByEmail(ctx, emailID, strings.TrimSpace(eventType))
}

// EventsByCampaign returns the tracking events of every email in a
// campaign, merged into one creation-ordered stream.
func (s *EmailService) EventsByCampaign(ctx context.Context, campaignID, eventType string) ([]*models.TrackingEvent, error) {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, errs.NotFound("campaign with id %s not found", campaignID)
	}

	emails, err := s.emails.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	var merged []*models.TrackingEvent
	for _, email := range emails {
		events, err := s.events.ListByEmail(ctx, email.ID, strings.TrimSpace(eventType))
		if err != nil {
			return nil, err
		}
		merged = append(merged, events...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].Seq < merged[j].Seq
		}
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged, nil
}
