// Package billing reconciles internal subscription and seat state against
// lifecycle notifications from the upstream billing provider.
//
// The provider is the source of truth for money movement; this package owns
// the mapping from provider subscriptions to organizations and the derived
// seat summary on each organization.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FreeSeats is the per-organization free seat allowance. Organizations only
// pay for seats beyond this count.
const FreeSeats = 3

// Errors
var (
	ErrCustomerNotFound     = errors.New("billing: customer not found")
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")
	ErrSubscriptionExists   = errors.New("billing: subscription already exists")
	ErrDuplicateEvent       = errors.New("billing: event already recorded")
)

// ValidationError marks a failure caused by the notification contents rather
// than by this system. The webhook layer maps it to an authentication-class
// rejection instead of a server error.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// IsValidation reports whether err is a payload validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Status is a subscription lifecycle state as reported by the provider.
type Status string

const (
	StatusOnTrial   Status = "on_trial"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// ValidStatus reports whether s is a recognized subscription status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOnTrial, StatusActive, StatusPastDue, StatusPaused, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Customer links an organization to one external billing customer.
// Created once on the first subscription_created event, never mutated after.
type Customer struct {
	ID                 string    `json:"id"`
	OrganizationID     string    `json:"organizationId"`
	ExternalCustomerID int64     `json:"externalCustomerId"`
	Email              string    `json:"email"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Subscription is the internal mirror of one provider subscription.
// Rows are never deleted; cancellation is a status transition.
type Subscription struct {
	ID                     string     `json:"id"`
	OrganizationID         string     `json:"organizationId"`
	CustomerID             string     `json:"customerId"`
	ExternalSubscriptionID string     `json:"externalSubscriptionId"`
	Status                 Status     `json:"status"`
	Quantity               int        `json:"quantity"`     // total billed seats
	CurrentSeats           int        `json:"currentSeats"` // seats actually granted
	PendingSeats           *int       `json:"pendingSeats,omitempty"`
	VariantID              int64      `json:"variantId"`
	RenewsAt               *time.Time `json:"renewsAt,omitempty"`
	EndsAt                 *time.Time `json:"endsAt,omitempty"`
	TrialEndsAt            *time.Time `json:"trialEndsAt,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// SubscriptionEvent is one validated lifecycle notification, decoupled from
// the provider's wire envelope. The webhook boundary builds it after schema
// validation; reconciler handlers operate only on this type.
type SubscriptionEvent struct {
	EventID        string
	EventName      string
	SubscriptionID string // provider's subscription id (data.id)
	Status         Status
	Quantity       int // already resolved against first_subscription_item
	CustomerID     int64
	CustomerEmail  string
	VariantID      int64
	RenewsAt       *time.Time
	EndsAt         *time.Time
	TrialEndsAt    *time.Time

	// Creation-time organization linkage from checkout custom data.
	OrganizationID   string
	OrganizationSlug string
}

// PaidSeats derives the billable seat count from a billed quantity.
func PaidSeats(quantity int) int {
	if quantity <= FreeSeats {
		return 0
	}
	return quantity - FreeSeats
}

// Store persists billing customers and subscriptions.
type Store interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomerByExternalID(ctx context.Context, externalID int64) (*Customer, error)

	CreateSubscription(ctx context.Context, s *Subscription) error
	GetSubscriptionByExternalID(ctx context.Context, externalID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, s *Subscription) error
}

func validateEvent(ev *SubscriptionEvent) error {
	if ev.EventID == "" || ev.EventName == "" || ev.SubscriptionID == "" {
		return &ValidationError{Reason: "Invalid payload structure"}
	}
	if !ValidStatus(ev.Status) {
		return &ValidationError{Reason: fmt.Sprintf("Invalid subscription status: %s", ev.Status)}
	}
	return nil
}
