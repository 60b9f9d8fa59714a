package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/driftmail/beacon/internal/models"
)

// =============================================
// IN-MEMORY EMAIL REPO
// =============================================

// InMemoryEmailRepo is a map-backed EmailRepo. It is used when Postgres
// is not configured and throughout the unit tests.
type InMemoryEmailRepo struct {
	mu     sync.RWMutex
	emails map[string]*models.Email
	byTID  map[string]string // tracking_id -> email_id
	order  []string          // insertion order for stable listings
}

func NewInMemoryEmailRepo() *InMemoryEmailRepo {
	return &InMemoryEmailRepo{
		emails: make(map[string]*models.Email),
		byTID:  make(map[string]string),
	}
}

func (r *InMemoryEmailRepo) Create(ctx context.Context, e *models.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *e
	r.emails[e.ID] = &cp
	r.byTID[e.TrackingID] = e.ID
	r.order = append(r.order, e.ID)
	return nil
}

func (r *InMemoryEmailRepo) GetByID(ctx context.Context, id string) (*models.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.emails[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *InMemoryEmailRepo) GetByTrackingID(ctx context.Context, trackingID string) (*models.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTID[trackingID]
	if !ok {
		return nil, nil
	}
	cp := *r.emails[id]
	return &cp, nil
}

func (r *InMemoryEmailRepo) List(ctx context.Context, f models.EmailFilter) ([]*models.Email, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.Email, 0, len(r.order))
	for _, id := range r.order {
		e := r.emails[id]
		if e == nil {
			continue
		}
		if f.CampaignID != "" && e.CampaignID != f.CampaignID {
			continue
		}
		if f.Recipient != "" && e.Recipient != f.Recipient {
			continue
		}
		if f.Sender != "" && e.Sender != f.Sender {
			continue
		}
		matched = append(matched, e)
	}

	total := int64(len(matched))

	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}

	page := make([]*models.Email, 0, end-start)
	for _, e := range matched[start:end] {
		cp := *e
		page = append(page, &cp)
	}
	return page, total, nil
}

func (r *InMemoryEmailRepo) ListByCampaign(ctx context.Context, campaignID string) ([]*models.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*models.Email, 0)
	for _, id := range r.order {
		e := r.emails[id]
		if e != nil && e.CampaignID == campaignID {
			cp := *e
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *InMemoryEmailRepo) Update(ctx context.Context, e *models.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *e
	r.emails[e.ID] = &cp
	return nil
}

func (r *InMemoryEmailRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.emails[id]
	if !ok {
		return nil
	}
	delete(r.byTID, e.TrackingID)
	delete(r.emails, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *InMemoryEmailRepo) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.emails)), nil
}

// =============================================
// IN-MEMORY CAMPAIGN REPO
// =============================================

type InMemoryCampaignRepo struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
	order     []string
}

func NewInMemoryCampaignRepo() *InMemoryCampaignRepo {
	return &InMemoryCampaignRepo{campaigns: make(map[string]*models.Campaign)}
}

func (r *InMemoryCampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *c
	r.campaigns[c.ID] = &cp
	r.order = append(r.order, c.ID)
	return nil
}

func (r *InMemoryCampaignRepo) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *InMemoryCampaignRepo) List(ctx context.Context, f models.CampaignFilter) ([]*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.Campaign, 0, len(r.order))
	for _, id := range r.order {
		c := r.campaigns[id]
		if c == nil {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
			continue
		}
		matched = append(matched, c)
	}

	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}

	page := make([]*models.Campaign, 0, end-start)
	for _, c := range matched[start:end] {
		cp := *c
		page = append(page, &cp)
	}
	return page, nil
}

func (r *InMemoryCampaignRepo) ListAll(ctx context.Context) ([]*models.Campaign, error) {
	return r.List(ctx, models.CampaignFilter{})
}

func (r *InMemoryCampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *InMemoryCampaignRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.campaigns, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *InMemoryCampaignRepo) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.campaigns)), nil
}

// =============================================
// IN-MEMORY EVENT STORE
// =============================================

// InMemoryEventStore keeps events in an append-only slice per email,
// which preserves insertion order by construction.
type InMemoryEventStore struct {
	mu      sync.RWMutex
	byEmail map[string][]*models.TrackingEvent
	nextSeq int64
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{byEmail: make(map[string][]*models.TrackingEvent)}
}

func (s *InMemoryEventStore) Append(ctx context.Context, ev *models.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	ev.Seq = s.nextSeq
	cp := *ev
	s.byEmail[ev.EmailID] = append(s.byEmail[ev.EmailID], &cp)
	return nil
}

func (s *InMemoryEventStore) ListByEmail(ctx context.Context, emailID, eventType string) ([]*models.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byEmail[emailID]
	res := make([]*models.TrackingEvent, 0, len(events))
	for _, ev := range events {
		if eventType != "" && ev.EventType != eventType {
			continue
		}
		cp := *ev
		res = append(res, &cp)
	}
	// Slices are appended in insertion order; a stable sort on the
	// creation timestamp keeps that order for equal timestamps.
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (s *InMemoryEventStore) DeleteByEmail(ctx context.Context, emailID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byEmail, emailID)
	return nil
}

func (s *InMemoryEventStore) GlobalCounts(ctx context.Context) (GlobalEventCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := GlobalEventCounts{DeviceBreakdown: make(map[string]int64)}
	for _, events := range s.byEmail {
		var hasOpen, hasClick bool
		for _, ev := range events {
			counts.TotalEvents++
			switch ev.EventType {
			case models.EventOpen:
				counts.TotalOpens++
				hasOpen = true
			case models.EventClick:
				counts.TotalClicks++
				hasClick = true
			}
			if ev.DeviceType != "" {
				counts.DeviceBreakdown[ev.DeviceType]++
			}
		}
		if hasOpen {
			counts.UniqueOpenEmails++
		}
		if hasClick {
			counts.UniqueClickEmails++
		}
	}
	return counts, nil
}
