package org

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists organizations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed organization store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, o *Organization) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, paid_seats, subscription_tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.Name, o.Slug, o.PaidSeats, string(o.SubscriptionTier), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Organization, error) {
	return p.scanOrg(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, paid_seats, subscription_tier, created_at, updated_at
		FROM organizations WHERE id = $1`, id))
}

func (p *PostgresStore) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	return p.scanOrg(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, paid_seats, subscription_tier, created_at, updated_at
		FROM organizations WHERE slug = $1`, slug))
}

func (p *PostgresStore) UpdateSeats(ctx context.Context, id string, paidSeats int, tier Tier) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE organizations SET paid_seats = $1, subscription_tier = $2, updated_at = $3
		WHERE id = $4`,
		paidSeats, string(tier), time.Now(), id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) scanOrg(row *sql.Row) (*Organization, error) {
	o := &Organization{}
	var tier string
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.PaidSeats, &tier, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.SubscriptionTier = Tier(tier)
	return o, nil
}
