package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmail/beacon/internal/models"
)

// seedRanked creates three campaigns: "gold" with the best open rate,
// "silver" in the middle, "bronze" with no engagement at all.
func seedRanked(t *testing.T, f *fixture) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.addCampaign(t, "gold", "gold")
	f.addEmail(t, "g1", "gold")
	f.addEvent(t, "g1", models.EventOpen, "10.0.0.1", "", base)
	f.addEvent(t, "g1", models.EventClick, "10.0.0.1", "", base.Add(time.Minute))

	f.addCampaign(t, "silver", "silver")
	f.addEmail(t, "s1", "silver")
	f.addEmail(t, "s2", "silver")
	f.addEvent(t, "s1", models.EventOpen, "10.0.0.2", "", base)

	f.addCampaign(t, "bronze", "bronze")
	f.addEmail(t, "b1", "bronze")
}

func TestTopCampaigns_ByOpenRate(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f)

	ranked, err := f.svc.TopCampaigns(context.Background(), MetricOpenRate, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "gold", ranked[0].CampaignID)
	assert.Equal(t, "silver", ranked[1].CampaignID)
	assert.Equal(t, "bronze", ranked[2].CampaignID)
}

func TestTopCampaigns_ByTotalClicks(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f)

	ranked, err := f.svc.TopCampaigns(context.Background(), MetricTotalClicks, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "gold", ranked[0].CampaignID)
}

func TestTopCampaigns_Limit(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f)

	ranked, err := f.svc.TopCampaigns(context.Background(), MetricOpenRate, 2)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)

	// A limit beyond the campaign count returns everything.
	ranked, err = f.svc.TopCampaigns(context.Background(), MetricOpenRate, 50)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)
}

func TestTopCampaigns_UnknownMetricFallsBack(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f)

	byOpenRate, err := f.svc.TopCampaigns(context.Background(), MetricOpenRate, 0)
	require.NoError(t, err)

	bogus, err := f.svc.TopCampaigns(context.Background(), "bogus_metric", 0)
	require.NoError(t, err)

	require.Len(t, bogus, len(byOpenRate))
	for i := range byOpenRate {
		assert.Equal(t, byOpenRate[i].CampaignID, bogus[i].CampaignID)
	}
}

func TestTopCampaigns_TiesKeepPriorOrder(t *testing.T) {
	f := newFixture(t)
	// Two campaigns with identical (zero) engagement.
	f.addCampaign(t, "first", "first")
	f.addEmail(t, "f1", "first")
	f.addCampaign(t, "second", "second")
	f.addEmail(t, "s1", "second")

	ranked, err := f.svc.TopCampaigns(context.Background(), MetricOpenRate, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "first", ranked[0].CampaignID)
	assert.Equal(t, "second", ranked[1].CampaignID)
}

func TestTopCampaigns_NoCampaigns(t *testing.T) {
	f := newFixture(t)

	ranked, err := f.svc.TopCampaigns(context.Background(), MetricOpenRate, 10)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
