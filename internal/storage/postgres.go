package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftmail/beacon/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema applies schema.sql. Safe to run repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// PostgresEmailRepo implements EmailRepo using PostgreSQL.
type PostgresEmailRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresEmailRepo(pool *pgxpool.Pool) *PostgresEmailRepo {
	return &PostgresEmailRepo{pool: pool}
}

const emailColumns = `
	id, tracking_id, recipient_email, sender_email, subject, body,
	COALESCE(campaign_id, ''), COALESCE(template_id, ''), sent_at, created_at, updated_at`

func scanEmail(row pgx.Row) (*models.Email, error) {
	var e models.Email
	err := row.Scan(
		&e.ID, &e.TrackingID, &e.Recipient, &e.Sender, &e.Subject, &e.Body,
		&e.CampaignID, &e.TemplateID, &e.SentAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresEmailRepo) Create(ctx context.Context, e *models.Email) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO emails (id, tracking_id, recipient_email, sender_email, subject, body,
			campaign_id, template_id, sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)
	`, e.ID, e.TrackingID, e.Recipient, e.Sender, e.Subject, e.Body,
		e.CampaignID, e.TemplateID, e.SentAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

func (r *PostgresEmailRepo) GetByID(ctx context.Context, id string) (*models.Email, error) {
	e, err := scanEmail(r.pool.QueryRow(ctx,
		`SELECT`+emailColumns+` FROM emails WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return e, nil
}

func (r *PostgresEmailRepo) GetByTrackingID(ctx context.Context, trackingID string) (*models.Email, error) {
	e, err := scanEmail(r.pool.QueryRow(ctx,
		`SELECT`+emailColumns+` FROM emails WHERE tracking_id = $1`, trackingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email by tracking id: %w", err)
	}
	return e, nil
}

func (r *PostgresEmailRepo) List(ctx context.Context, f models.EmailFilter) ([]*models.Email, int64, error) {
	where := ` WHERE ($1 = '' OR campaign_id = $1)
		AND ($2 = '' OR recipient_email = $2)
		AND ($3 = '' OR sender_email = $3)`

	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emails`+where,
		f.CampaignID, f.Recipient, f.Sender).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count emails: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT`+emailColumns+` FROM emails`+where+` ORDER BY created_at, id LIMIT $4 OFFSET $5`,
		f.CampaignID, f.Recipient, f.Sender, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var emails []*models.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, 0, err
		}
		emails = append(emails, e)
	}
	return emails, total, rows.Err()
}

func (r *PostgresEmailRepo) ListByCampaign(ctx context.Context, campaignID string) ([]*models.Email, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+emailColumns+` FROM emails WHERE campaign_id = $1 ORDER BY created_at, id`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign emails: %w", err)
	}
	defer rows.Close()

	var emails []*models.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (r *PostgresEmailRepo) Update(ctx context.Context, e *models.Email) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE emails SET subject = $2, body = $3, campaign_id = NULLIF($4, ''), updated_at = $5
		WHERE id = $1
	`, e.ID, e.Subject, e.Body, e.CampaignID, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	return nil
}

func (r *PostgresEmailRepo) Delete(ctx context.Context, id string) error {
	// tracking_events rows go with it via ON DELETE CASCADE.
	if _, err := r.pool.Exec(ctx, `DELETE FROM emails WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete email: %w", err)
	}
	return nil
}

func (r *PostgresEmailRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return n, nil
}
