package analytics

import (
	"context"
	"sort"
)

// Ranking metrics accepted by TopCampaigns.
const (
	MetricOpenRate         = "open_rate"
	MetricClickRate        = "click_rate"
	MetricTotalOpens       = "total_opens"
	MetricTotalClicks      = "total_clicks"
	MetricClickThroughRate = "click_through_rate"
)

var validMetrics = map[string]struct{}{
	MetricOpenRate:         {},
	MetricClickRate:        {},
	MetricTotalOpens:       {},
	MetricTotalClicks:      {},
	MetricClickThroughRate: {},
}

// TopCampaigns computes stats for every campaign and returns the top
// limit entries ordered descending by the chosen metric. An
// unrecognized metric silently falls back to open_rate; campaigns with
// equal metric values keep their prior relative order. Limit bounds are
// the boundary layer's responsibility.
func (s *Service) TopCampaigns(ctx context.Context, metric string, limit int) ([]*CampaignStats, error) {
	if _, ok := validMetrics[metric]; !ok {
		metric = MetricOpenRate
	}

	campaigns, err := s.campaigns.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]*CampaignStats, 0, len(campaigns))
	for _, c := range campaigns {
		cs, err := s.CampaignStats(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		stats = append(stats, cs)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return metricValue(stats[i], metric) > metricValue(stats[j], metric)
	})

	if limit > 0 && limit < len(stats) {
		stats = stats[:limit]
	}
	return stats, nil
}

func metricValue(cs *CampaignStats, metric string) float64 {
	switch metric {
	case MetricClickRate:
		return cs.ClickRate
	case MetricTotalOpens:
		return float64(cs.TotalOpens)
	case MetricTotalClicks:
		return float64(cs.TotalClicks)
	case MetricClickThroughRate:
		return cs.ClickThroughRate
	default:
		return cs.OpenRate
	}
}
