package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftmail/beacon/internal/models"
)

// PostgresEventStore implements EventStore using PostgreSQL. Rows are
// insert-only; the bigserial seq column reproduces insertion order when
// creation timestamps collide.
type PostgresEventStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEventStore(pool *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{pool: pool}
}

func (s *PostgresEventStore) Append(ctx context.Context, ev *models.TrackingEvent) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tracking_events (id, email_id, event_type, ip_address, user_agent,
			location, device_type, clicked_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`, ev.ID, ev.EmailID, ev.EventType, ev.IPAddress, ev.UserAgent,
		ev.Location, ev.DeviceType, ev.ClickedURL, ev.CreatedAt).Scan(&ev.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert tracking event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) ListByEmail(ctx context.Context, emailID, eventType string) ([]*models.TrackingEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email_id, event_type, ip_address, user_agent, location,
			device_type, clicked_url, seq, created_at
		FROM tracking_events
		WHERE email_id = $1 AND ($2 = '' OR event_type = $2)
		ORDER BY created_at, seq
	`, emailID, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking events: %w", err)
	}
	defer rows.Close()

	var events []*models.TrackingEvent
	for rows.Next() {
		var ev models.TrackingEvent
		if err := rows.Scan(&ev.ID, &ev.EmailID, &ev.EventType, &ev.IPAddress, &ev.UserAgent,
			&ev.Location, &ev.DeviceType, &ev.ClickedURL, &ev.Seq, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (s *PostgresEventStore) DeleteByEmail(ctx context.Context, emailID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tracking_events WHERE email_id = $1`, emailID); err != nil {
		return fmt.Errorf("failed to delete tracking events: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) GlobalCounts(ctx context.Context) (GlobalEventCounts, error) {
	counts := GlobalEventCounts{DeviceBreakdown: make(map[string]int64)}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE event_type = 'open'),
			COUNT(*) FILTER (WHERE event_type = 'click'),
			COUNT(DISTINCT email_id) FILTER (WHERE event_type = 'open'),
			COUNT(DISTINCT email_id) FILTER (WHERE event_type = 'click')
		FROM tracking_events
	`).Scan(&counts.TotalEvents, &counts.TotalOpens, &counts.TotalClicks,
		&counts.UniqueOpenEmails, &counts.UniqueClickEmails)
	if err != nil {
		return counts, fmt.Errorf("failed to count tracking events: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT device_type, COUNT(*)
		FROM tracking_events
		WHERE device_type <> ''
		GROUP BY device_type
	`)
	if err != nil {
		return counts, fmt.Errorf("failed to aggregate device breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var device string
		var n int64
		if err := rows.Scan(&device, &n); err != nil {
			return counts, err
		}
		counts.DeviceBreakdown[device] = n
	}
	return counts, rows.Err()
}
