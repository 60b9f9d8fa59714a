package models

import (
	"time"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusPaused    CampaignStatus = "paused"
)

// ValidCampaignStatus reports whether s is one of the accepted statuses.
func ValidCampaignStatus(s CampaignStatus) bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusCompleted, CampaignStatusPaused:
		return true
	}
	return false
}

// Campaign groups zero or more emails. No aggregate state is stored on
// the campaign itself; statistics are derived at query time.
type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	Status      CampaignStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CampaignFilter narrows a listing of campaigns.
type CampaignFilter struct {
	Status    CampaignStatus
	CreatedBy string
	Limit     int
	Offset    int
}
