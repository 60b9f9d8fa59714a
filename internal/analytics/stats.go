package analytics

import (
	"context"
	"math"
	"time"

	"github.com/driftmail/beacon/internal/errs"
	"github.com/driftmail/beacon/internal/models"
	"github.com/driftmail/beacon/internal/storage"
)

// EmailStats aggregates engagement metrics for one email. Unique
// counts are keyed by distinct non-empty IP address.
type EmailStats struct {
	EmailID         string           `json:"email_id"`
	TotalOpens      int64            `json:"total_opens"`
	TotalClicks     int64            `json:"total_clicks"`
	UniqueOpens     int64            `json:"unique_opens"`
	UniqueClicks    int64            `json:"unique_clicks"`
	DeviceBreakdown map[string]int64 `json:"device_breakdown"`
	FirstOpenedAt   *time.Time       `json:"first_opened_at"`
	LastOpenedAt    *time.Time       `json:"last_opened_at"`
	LastClickAt     *time.Time       `json:"last_click_at"`
}

// CampaignStats aggregates engagement metrics for one campaign. Unlike
// per-email stats, uniqueness here is keyed by distinct email (one per
// recipient), not by IP. Rates are percentages rounded to 2 decimals.
type CampaignStats struct {
	CampaignID       string           `json:"campaign_id"`
	CampaignName     string           `json:"campaign_name"`
	TotalEmails      int64            `json:"total_emails"`
	TotalOpens       int64            `json:"total_opens"`
	TotalClicks      int64            `json:"total_clicks"`
	UniqueOpens      int64            `json:"unique_opens"`
	UniqueClicks     int64            `json:"unique_clicks"`
	OpenRate         float64          `json:"open_rate"`
	ClickRate        float64          `json:"click_rate"`
	ClickThroughRate float64          `json:"click_through_rate"`
	DeviceBreakdown  map[string]int64 `json:"device_breakdown"`
}

// GlobalStats aggregates engagement metrics across the whole system.
type GlobalStats struct {
	TotalCampaigns  int64            `json:"total_campaigns"`
	TotalEmails     int64            `json:"total_emails"`
	TotalEvents     int64            `json:"total_events"`
	TotalOpens      int64            `json:"total_opens"`
	TotalClicks     int64            `json:"total_clicks"`
	UniqueOpens     int64            `json:"unique_opens"`
	UniqueClicks    int64            `json:"unique_clicks"`
	OpenRate        float64          `json:"open_rate"`
	ClickRate       float64          `json:"click_rate"`
	DeviceBreakdown map[string]int64 `json:"device_breakdown"`
}

// Service computes statistics from raw tracking events. Nothing is
// cached or persisted: every call re-scans the current event history,
// so results always reflect the latest recorded events.
type Service struct {
	emails    storage.EmailRepo
	campaigns storage.CampaignRepo
	events    storage.EventStore
}

// NewService constructs the aggregator with explicit lookups rather
// than discovering collaborators lazily.
func NewService(emails storage.EmailRepo, campaigns storage.CampaignRepo, events storage.EventStore) *Service {
	return &Service{
		emails:    emails,
		campaigns: campaigns,
		events:    events,
	}
}

// EmailStats derives per-email statistics from that email's events.
func (s *Service) EmailStats(ctx context.Context, emailID string) (*EmailStats, error) {
	email, err := s.emails.GetByID(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, errs.NotFound("email not found: %s", emailID)
	}

	events, err := s.events.ListByEmail(ctx, emailID, "")
	if err != nil {
		return nil, err
	}

	stats := &EmailStats{
		EmailID:         emailID,
		DeviceBreakdown: make(map[string]int64),
	}

	openIPs := make(map[string]struct{})
	clickIPs := make(map[string]struct{})

	for _, ev := range events {
		switch ev.EventType {
		case models.EventOpen:
			stats.TotalOpens++
			if ev.IPAddress != "" {
				openIPs[ev.IPAddress] = struct{}{}
			}
			if stats.FirstOpenedAt == nil {
				t := ev.CreatedAt
				stats.FirstOpenedAt = &t
			}
			t := ev.CreatedAt
			stats.LastOpenedAt = &t
		case models.EventClick:
			stats.TotalClicks++
			if ev.IPAddress != "" {
				clickIPs[ev.IPAddress] = struct{}{}
			}
			t := ev.CreatedAt
			stats.LastClickAt = &t
		}
		if ev.DeviceType != "" {
			stats.DeviceBreakdown[ev.DeviceType]++
		}
	}

	stats.UniqueOpens = int64(len(openIPs))
	stats.UniqueClicks = int64(len(clickIPs))
	return stats, nil
}

// CampaignStats derives campaign statistics by scanning every event of
// every email in the campaign.
func (s *Service) CampaignStats(ctx context.Context, campaignID string) (*CampaignStats, error) {
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

	stats := &CampaignStats{
		CampaignID:      campaignID,
		CampaignName:    campaign.Name,
		TotalEmails:     int64(len(emails)),
		DeviceBreakdown: make(map[string]int64),
	}

	// Empty campaign: all counts and rates stay 0, never divide.
	if len(emails) == 0 {
		return stats, nil
	}

	for _, email := range emails {
		events, err := s.events.ListByEmail(ctx, email.ID, "")
		if err != nil {
			return nil, err
		}

		var hasOpen, hasClick bool
		for _, ev := range events {
			switch ev.EventType {
			case models.EventOpen:
				stats.TotalOpens++
				hasOpen = true
			case models.EventClick:
				stats.TotalClicks++
				hasClick = true
			}
			if ev.DeviceType != "" {
				stats.DeviceBreakdown[ev.DeviceType]++
			}
		}
		if hasOpen {
			stats.UniqueOpens++
		}
		if hasClick {
			stats.UniqueClicks++
		}
	}

	stats.OpenRate = round2(float64(stats.UniqueOpens) / float64(stats.TotalEmails) * 100)
	stats.ClickRate = round2(float64(stats.UniqueClicks) / float64(stats.TotalEmails) * 100)
	if stats.UniqueOpens > 0 {
		stats.ClickThroughRate = round2(float64(stats.UniqueClicks) / float64(stats.UniqueOpens) * 100)
	}

	return stats, nil
}

// GlobalStats derives system-wide statistics.
func (s *Service) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	totalCampaigns, err := s.campaigns.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalEmails, err := s.emails.Count(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.events.GlobalCounts(ctx)
	if err != nil {
		return nil, err
	}

	stats := &GlobalStats{
		TotalCampaigns:  totalCampaigns,
		TotalEmails:     totalEmails,
		TotalEvents:     counts.TotalEvents,
		TotalOpens:      counts.TotalOpens,
		TotalClicks:     counts.TotalClicks,
		UniqueOpens:     counts.UniqueOpenEmails,
		UniqueClicks:    counts.UniqueClickEmails,
		DeviceBreakdown: counts.DeviceBreakdown,
	}

	if totalEmails > 0 {
		stats.OpenRate = float64(stats.UniqueOpens) / float64(totalEmails) * 100
		stats.ClickRate = float64(stats.UniqueClicks) / float64(totalEmails) * 100
	}

	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
