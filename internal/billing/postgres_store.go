package billing

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists billing customers and subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed billing store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateCustomer(ctx context.Context, c *Customer) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO billing_customers (id, organization_id, external_customer_id, email, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.OrganizationID, c.ExternalCustomerID, c.Email, c.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSubscriptionExists
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetCustomerByExternalID(ctx context.Context, externalID int64) (*Customer, error) {
	c := &Customer{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, organization_id, external_customer_id, email, created_at
		FROM billing_customers WHERE external_customer_id = $1`, externalID,
	).Scan(&c.ID, &c.OrganizationID, &c.ExternalCustomerID, &c.Email, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *PostgresStore) CreateSubscription(ctx context.Context, s *Subscription) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO billing_subscriptions
			(id, organization_id, customer_id, external_subscription_id, status, quantity,
			 current_seats, pending_seats, variant_id, renews_at, ends_at, trial_ends_at,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.OrganizationID, s.CustomerID, s.ExternalSubscriptionID, string(s.Status),
		s.Quantity, s.CurrentSeats, s.PendingSeats, s.VariantID,
		s.RenewsAt, s.EndsAt, s.TrialEndsAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSubscriptionExists
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*Subscription, error) {
	return p.scanSubscription(p.db.QueryRowContext(ctx, `
		SELECT id, organization_id, customer_id, external_subscription_id, status, quantity,
		       current_seats, pending_seats, variant_id, renews_at, ends_at, trial_ends_at,
		       created_at, updated_at
		FROM billing_subscriptions WHERE external_subscription_id = $1`, externalID))
}

func (p *PostgresStore) UpdateSubscription(ctx context.Context, s *Subscription) error {
	s.UpdatedAt = time.Now()
	result, err := p.db.ExecContext(ctx, `
		UPDATE billing_subscriptions
		SET status = $1, quantity = $2, current_seats = $3, pending_seats = $4,
		    variant_id = $5, renews_at = $6, ends_at = $7, trial_ends_at = $8, updated_at = $9
		WHERE id = $10`,
		string(s.Status), s.Quantity, s.CurrentSeats, s.PendingSeats,
		s.VariantID, s.RenewsAt, s.EndsAt, s.TrialEndsAt, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (p *PostgresStore) scanSubscription(row *sql.Row) (*Subscription, error) {
	s := &Subscription{}
	var status string
	var pending sql.NullInt64
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.CustomerID, &s.ExternalSubscriptionID, &status,
		&s.Quantity, &s.CurrentSeats, &pending, &s.VariantID,
		&s.RenewsAt, &s.EndsAt, &s.TrialEndsAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	if pending.Valid {
		v := int(pending.Int64)
		s.PendingSeats = &v
	}
	return s, nil
}
