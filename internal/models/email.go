package models

import (
	"time"
)

// Email represents one dispatched email eligible for tracking. The
// tracking id is minted once at creation and never reused.
type Email struct {
	ID         string    `json:"id"`
	TrackingID string    `json:"tracking_id"`
	Recipient  string    `json:"recipient_email"`
	Sender     string    `json:"sender_email"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body,omitempty"`
	CampaignID string    `json:"campaign_id,omitempty"`
	TemplateID string    `json:"template_id,omitempty"`
	SentAt     time.Time `json:"sent_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EmailFilter narrows a listing of emails. Zero values mean "no filter".
type EmailFilter struct {
	CampaignID string
	Recipient  string
	Sender     string
	Limit      int
	Offset     int
}
