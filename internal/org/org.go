// Package org manages organizations and their derived seat summary.
//
// The seat summary (paid_seats, subscription_tier) is never authored
// directly; it is recomputed by the billing reconciler from the owning
// subscription's quantity and status.
package org

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound  = errors.New("org: not found")
	ErrSlugTaken = errors.New("org: slug already taken")
)

// Tier classifies an organization's subscription level.
type Tier string

const (
	TierActive Tier = "active"
	TierFree   Tier = "free"
)

// Organization represents a team using the platform.
type Organization struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	PaidSeats        int       `json:"paidSeats"`
	SubscriptionTier Tier      `json:"subscriptionTier"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Store persists organizations.
type Store interface {
	Create(ctx context.Context, o *Organization) error
	Get(ctx context.Context, id string) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	// UpdateSeats overwrites the derived seat summary.
	UpdateSeats(ctx context.Context, id string, paidSeats int, tier Tier) error
}
