package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftmail/beacon/internal/errs"
	"github.com/driftmail/beacon/internal/models"
	"github.com/driftmail/beacon/internal/storage"
)

// CampaignService owns campaign records.
type CampaignService struct {
	campaigns storage.CampaignRepo
	logger    *zap.Logger
}

func NewCampaignService(campaigns storage.CampaignRepo, logger *zap.Logger) *CampaignService {
	return &CampaignService{campaigns: campaigns, logger: logger}
}

// CreateCampaignInput carries the fields for a new campaign.
type CreateCampaignInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
	Status      string `json:"status"`
}

func (s *CampaignService) Create(ctx context.Context, in CreateCampaignInput) (*models.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errs.Validation("name", "campaign name is required")
	}

	status := models.CampaignStatus(in.Status)
	if status == "" {
		status = models.CampaignStatusDraft
	}
	if !models.ValidCampaignStatus(status) {
		return nil, errs.Validation("status", "invalid status: %s", in.Status)
	}

	now := time.Now().UTC()
	campaign := &models.Campaign{
		ID:          uuid.New().String(),
		Name:        name,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	s.logger.Info("campaign created",
		zap.String("campaign_id", campaign.ID),
		zap.String("name", campaign.Name),
	)

	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, errs.NotFound("campaign with id %s not found", id)
	}
	return campaign, nil
}

func (s *CampaignService) List(ctx context.Context, f models.CampaignFilter) ([]*models.Campaign, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return s.campaigns.List(ctx, f)
}

// UpdateCampaignInput carries optional field updates. Nil means unchanged.
type UpdateCampaignInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	CreatedBy   *string `json:"created_by"`
}

func (s *CampaignService) Update(ctx context.Context, id string, in UpdateCampaignInput) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errs.Validation("name", "campaign name cannot be empty")
		}
		campaign.Name = name
	}
	if in.Description != nil {
		campaign.Description = *in.Description
	}
	if in.Status != nil {
		status := models.CampaignStatus(*in.Status)
		if !models.ValidCampaignStatus(status) {
			return nil, errs.Validation("status", "invalid status: %s", *in.Status)
		}
		campaign.Status = status
	}
	if in.CreatedBy != nil {
		campaign.CreatedBy = *in.CreatedBy
	}
	campaign.UpdatedAt = time.Now().UTC()

	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *CampaignService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.campaigns.Delete(ctx, id)
}
