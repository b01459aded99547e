package billing

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	customers     map[string]*Customer     // by internal id
	custByExt     map[int64]*Customer      // by external customer id
	subscriptions map[string]*Subscription // by internal id
	subByExt      map[string]*Subscription // by external subscription id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:     make(map[string]*Customer),
		custByExt:     make(map[int64]*Customer),
		subscriptions: make(map[string]*Subscription),
		subByExt:      make(map[string]*Subscription),
	}
}

func (m *MemoryStore) CreateCustomer(ctx context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.custByExt[c.ExternalCustomerID]; ok {
		return ErrSubscriptionExists
	}
	cp := *c
	m.customers[cp.ID] = &cp
	m.custByExt[cp.ExternalCustomerID] = &cp
	return nil
}

func (m *MemoryStore) GetCustomerByExternalID(ctx context.Context, externalID int64) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.custByExt[externalID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CreateSubscription(ctx context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subByExt[s.ExternalSubscriptionID]; ok {
		return ErrSubscriptionExists
	}
	cp := cloneSubscription(s)
	m.subscriptions[cp.ID] = cp
	m.subByExt[cp.ExternalSubscriptionID] = cp
	return nil
}

func (m *MemoryStore) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subByExt[externalID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(s), nil
}

func (m *MemoryStore) UpdateSubscription(ctx context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscriptions[s.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	cp := cloneSubscription(s)
	m.subscriptions[cp.ID] = cp
	m.subByExt[cp.ExternalSubscriptionID] = cp
	return nil
}

// cloneSubscription deep-copies the pointer fields so callers cannot mutate
// stored state through a returned value.
func cloneSubscription(s *Subscription) *Subscription {
	cp := *s
	if s.PendingSeats != nil {
		v := *s.PendingSeats
		cp.PendingSeats = &v
	}
	if s.RenewsAt != nil {
		t := *s.RenewsAt
		cp.RenewsAt = &t
	}
	if s.EndsAt != nil {
		t := *s.EndsAt
		cp.EndsAt = &t
	}
	if s.TrialEndsAt != nil {
		t := *s.TrialEndsAt
		cp.TrialEndsAt = &t
	}
	return &cp
}
