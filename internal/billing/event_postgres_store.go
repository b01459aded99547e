package billing

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// EventPostgresStore persists the billing event ledger in PostgreSQL.
// The unique index on event_id is the idempotency authority, so a
// concurrent duplicate insert surfaces as ErrDuplicateEvent instead of
// relying on a check-then-insert race.
type EventPostgresStore struct {
	db *sql.DB
}

// NewEventPostgresStore creates a new PostgreSQL-backed event ledger.
func NewEventPostgresStore(db *sql.DB) *EventPostgresStore {
	return &EventPostgresStore{db: db}
}

func (p *EventPostgresStore) HasEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM billing_events WHERE event_id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (p *EventPostgresStore) AppendEvent(ctx context.Context, rec *EventRecord) error {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO billing_events (event_id, event_type, payload, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.EventID, rec.EventType, rec.Payload, string(rec.Status), rec.ErrorMessage, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (p *EventPostgresStore) ListEvents(ctx context.Context, limit int) ([]*EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, event_id, event_type, payload, status, error_message, created_at
		FROM billing_events ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*EventRecord
	for rows.Next() {
		rec := &EventRecord{}
		var status string
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.Payload,
			&status, &rec.ErrorMessage, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = EventStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
