package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/techmajster/time8-product-sub002/internal/metrics"
)

// EventStatus is the recorded outcome of one processed notification.
type EventStatus string

const (
	EventProcessed EventStatus = "processed"
	EventFailed    EventStatus = "failed"
	EventSkipped   EventStatus = "skipped"
)

// EventRecord is one append-only audit row. The unique external event id is
// the sole idempotency authority: a row's existence means "do not reprocess".
type EventRecord struct {
	ID           int64       `json:"id"`
	EventID      string      `json:"eventId"`
	EventType    string      `json:"eventType"`
	Payload      []byte      `json:"-"`
	Status       EventStatus `json:"status"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// EventStore persists the append-only billing event ledger.
type EventStore interface {
	// HasEvent reports whether an event id has already been recorded.
	HasEvent(ctx context.Context, eventID string) (bool, error)
	// AppendEvent inserts one audit row. Implementations return
	// ErrDuplicateEvent when the event id is already present.
	AppendEvent(ctx context.Context, rec *EventRecord) error
	// ListEvents returns the most recent audit rows, newest first.
	ListEvents(ctx context.Context, limit int) ([]*EventRecord, error)
}

// AuditLog wraps the event ledger with the idempotency-guard and
// best-effort-write semantics the webhook pipeline relies on.
type AuditLog struct {
	store  EventStore
	logger *slog.Logger
}

// NewAuditLog creates a new audit log.
func NewAuditLog(store EventStore, logger *slog.Logger) *AuditLog {
	return &AuditLog{store: store, logger: logger}
}

// AlreadyProcessed reports whether the event id exists in the ledger.
// Fails open: a ledger read error yields false, preferring a reprocessed
// event over a silently dropped one. The error is surfaced to logs.
func (a *AuditLog) AlreadyProcessed(ctx context.Context, eventID string) bool {
	found, err := a.store.HasEvent(ctx, eventID)
	if err != nil {
		a.logger.Error("idempotency check failed, processing anyway",
			"event_id", eventID, "error", err)
		return false
	}
	return found
}

// Record appends one audit row. It never propagates failure: losing an audit
// entry must not change the acknowledgment returned to the provider, so
// errors go to operational logging and a metric only. A duplicate insert
// (concurrent redelivery racing past the check) is logged as benign.
func (a *AuditLog) Record(ctx context.Context, eventType, eventID string, payload []byte, status EventStatus, errMsg string) {
	rec := &EventRecord{
		EventID:      eventID,
		EventType:    eventType,
		Payload:      payload,
		Status:       status,
		ErrorMessage: errMsg,
		CreatedAt:    time.Now(),
	}
	if err := a.store.AppendEvent(ctx, rec); err != nil {
		if err == ErrDuplicateEvent {
			a.logger.Warn("duplicate billing event row, concurrent delivery",
				"event_id", eventID, "event_type", eventType)
			return
		}
		metrics.AuditWriteFailuresTotal.Inc()
		a.logger.Error("failed to write billing event audit row",
			"event_id", eventID, "event_type", eventType, "error", err)
	}
}

// Events exposes the underlying ledger for the admin audit surface.
func (a *AuditLog) Events(ctx context.Context, limit int) ([]*EventRecord, error) {
	return a.store.ListEvents(ctx, limit)
}
