package org

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	orgs   map[string]*Organization
	bySlug map[string]string
}

// NewMemoryStore creates a new in-memory organization store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:   make(map[string]*Organization),
		bySlug: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.bySlug[o.Slug]; taken {
		return ErrSlugTaken
	}

	cp := *o
	m.orgs[o.ID] = &cp
	m.bySlug[o.Slug] = o.ID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySlug[slug]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.orgs[id]
	return &cp, nil
}

func (m *MemoryStore) UpdateSeats(ctx context.Context, id string, paidSeats int, tier Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orgs[id]
	if !ok {
		return ErrNotFound
	}
	o.PaidSeats = paidSeats
	o.SubscriptionTier = tier
	o.UpdatedAt = time.Now()
	return nil
}
