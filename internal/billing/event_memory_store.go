package billing

import (
	"context"
	"sync"
)

// EventMemoryStore is an in-memory EventStore for development and tests.
type EventMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []*EventRecord
	byEvent map[string]*EventRecord
}

// NewEventMemoryStore creates an empty in-memory event ledger.
func NewEventMemoryStore() *EventMemoryStore {
	return &EventMemoryStore{byEvent: make(map[string]*EventRecord)}
}

func (m *EventMemoryStore) HasEvent(ctx context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byEvent[eventID]
	return ok, nil
}

func (m *EventMemoryStore) AppendEvent(ctx context.Context, rec *EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEvent[rec.EventID]; ok {
		return ErrDuplicateEvent
	}
	m.nextID++
	cp := *rec
	cp.ID = m.nextID
	m.records = append(m.records, &cp)
	m.byEvent[cp.EventID] = &cp
	rec.ID = cp.ID
	return nil
}

func (m *EventMemoryStore) ListEvents(ctx context.Context, limit int) ([]*EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]*EventRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.records[i]
		out = append(out, &cp)
	}
	return out, nil
}
