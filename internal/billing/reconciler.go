package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/techmajster/time8-product-sub002/internal/idgen"
	"github.com/techmajster/time8-product-sub002/internal/metrics"
	"github.com/techmajster/time8-product-sub002/internal/org"
)

// Result is the uniform outcome of one reconciler handler. Handlers never
// panic across their boundary; business failures come back as errors so the
// webhook layer can decide the HTTP status and write exactly one audit row.
type Result struct {
	Message        string `json:"message"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// Reconciler interprets lifecycle events and mutates subscription and
// organization seat state. It holds no per-request state; the datastore is
// the sole serialization point.
type Reconciler struct {
	store  Store
	orgs   org.Store
	logger *slog.Logger
}

// NewReconciler creates a new subscription reconciler.
func NewReconciler(store Store, orgs org.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, orgs: orgs, logger: logger}
}

// HandleCreated processes subscription_created: resolves (or creates) the
// customer link, inserts the subscription row, and grants seats immediately.
func (r *Reconciler) HandleCreated(ctx context.Context, ev *SubscriptionEvent) (*Result, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	customer, err := r.findOrCreateCustomer(ctx, ev)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sub := &Subscription{
		ID:                     idgen.WithPrefix("sub_"),
		OrganizationID:         customer.OrganizationID,
		CustomerID:             customer.ID,
		ExternalSubscriptionID: ev.SubscriptionID,
		Status:                 ev.Status,
		Quantity:               ev.Quantity,
		CurrentSeats:           ev.Quantity, // new subscribers get access immediately
		VariantID:              ev.VariantID,
		RenewsAt:               ev.RenewsAt,
		EndsAt:                 ev.EndsAt,
		TrialEndsAt:            ev.TrialEndsAt,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := r.store.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	r.recomputeSeats(ctx, sub)

	return &Result{
		Message:        fmt.Sprintf("Subscription created with %d seats", sub.Quantity),
		OrganizationID: sub.OrganizationID,
	}, nil
}

// HandleUpdated processes subscription_updated: provider-side edits are
// overwritten verbatim and take effect immediately.
func (r *Reconciler) HandleUpdated(ctx context.Context, ev *SubscriptionEvent) (*Result, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	sub, err := r.store.GetSubscriptionByExternalID(ctx, ev.SubscriptionID)
	if err != nil {
		return nil, err
	}

	sub.Status = ev.Status
	sub.Quantity = ev.Quantity
	// Manual provider-side edits must propagate immediately, not only when
	// quantity itself changed.
	sub.CurrentSeats = ev.Quantity
	sub.VariantID = ev.VariantID
	sub.RenewsAt = ev.RenewsAt
	sub.EndsAt = ev.EndsAt
	sub.TrialEndsAt = ev.TrialEndsAt
	sub.UpdatedAt = time.Now()

	if err := r.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}

	// Unconditional: tier classification depends on status/quantity interplay,
	// so even a dates-only update recomputes the organization summary.
	r.recomputeSeats(ctx, sub)

	return &Result{
		Message:        "Subscription updated",
		OrganizationID: sub.OrganizationID,
	}, nil
}

// HandleCancelled processes subscription_cancelled and subscription_expired.
// Seats are revoked immediately; re-cancelling an already-cancelled
// subscription is idempotent.
func (r *Reconciler) HandleCancelled(ctx context.Context, ev *SubscriptionEvent) (*Result, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	sub, err := r.store.GetSubscriptionByExternalID(ctx, ev.SubscriptionID)
	if err != nil {
		return nil, err
	}

	sub.Status = ev.Status
	sub.EndsAt = ev.EndsAt
	sub.RenewsAt = nil
	sub.Quantity = 0
	sub.CurrentSeats = 0
	sub.PendingSeats = nil
	sub.UpdatedAt = time.Now()

	if err := r.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	r.recomputeSeats(ctx, sub)

	return &Result{
		Message:        "Subscription cancelled, seats revoked",
		OrganizationID: sub.OrganizationID,
	}, nil
}

// HandlePaymentFailed processes subscription_payment_failed: the status flips
// to past_due but seats are untouched until the provider resolves or cancels.
func (r *Reconciler) HandlePaymentFailed(ctx context.Context, ev *SubscriptionEvent) (*Result, error) {
	sub, err := r.store.GetSubscriptionByExternalID(ctx, ev.SubscriptionID)
	if err != nil {
		return nil, err
	}

	sub.Status = StatusPastDue
	sub.UpdatedAt = time.Now()

	if err := r.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("mark past_due: %w", err)
	}

	return &Result{
		Message:        "Subscription marked past_due",
		OrganizationID: sub.OrganizationID,
	}, nil
}

// HandlePaused processes subscription_paused.
func (r *Reconciler) HandlePaused(ctx context.Context, ev *SubscriptionEvent) (*Result, error) {
	sub, err := r.store.GetSubscriptionByExternalID(ctx, ev.SubscriptionID)
	if err != nil {
		return nil, err
	}

	sub.Status = StatusPaused
	sub.RenewsAt = nil
	sub.UpdatedAt = time.Now()

	if err := r.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("pause subscription: %w", err)
	}

	return &Result{
		Message:        "Subscription paused",
		OrganizationID: sub.OrganizationID,
	}, nil
}

// HandleResumed processes subscription_resumed / subscription_unpaused.
func (r *Reconciler) HandleResumed(ctx context.Context, ev *SubscriptionEvent) (*Result, error) {
	sub, err := r.store.GetSubscriptionByExternalID(ctx, ev.SubscriptionID)
	if err != nil {
		return nil, err
	}

	sub.Status = StatusActive
	sub.RenewsAt = ev.RenewsAt
	sub.UpdatedAt = time.Now()

	if err := r.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("resume subscription: %w", err)
	}

	// Recompute with the subscription's existing quantity.
	r.recomputeSeats(ctx, sub)

	return &Result{
		Message:        "Subscription resumed",
		OrganizationID: sub.OrganizationID,
	}, nil
}

// HandlePaymentSuccess is the checkpoint where billed seat changes become
// access changes: a deferred downgrade (pending_seats) applies at renewal,
// an already-billed upgrade is granted, and a routine renewal with nothing
// pending returns success without touching any row.
func (r *Reconciler) HandlePaymentSuccess(ctx context.Context, ev *SubscriptionEvent) (*Result, error) {
	sub, err := r.store.GetSubscriptionByExternalID(ctx, ev.SubscriptionID)
	if err != nil {
		return nil, err
	}

	switch {
	case sub.PendingSeats != nil:
		seats := *sub.PendingSeats
		sub.Quantity = seats
		sub.CurrentSeats = seats
		sub.PendingSeats = nil
		sub.UpdatedAt = time.Now()
		if err := r.store.UpdateSubscription(ctx, sub); err != nil {
			return nil, fmt.Errorf("apply pending seats: %w", err)
		}
		r.recomputeSeats(ctx, sub)
		return &Result{
			Message:        fmt.Sprintf("Scheduled seat change applied: %d seats", seats),
			OrganizationID: sub.OrganizationID,
		}, nil

	case sub.CurrentSeats != sub.Quantity:
		sub.CurrentSeats = sub.Quantity
		sub.UpdatedAt = time.Now()
		if err := r.store.UpdateSubscription(ctx, sub); err != nil {
			return nil, fmt.Errorf("grant billed seats: %w", err)
		}
		r.recomputeSeats(ctx, sub)
		return &Result{
			Message:        fmt.Sprintf("Seat upgrade granted: %d seats", sub.Quantity),
			OrganizationID: sub.OrganizationID,
		}, nil

	default:
		// Routine renewal, the most frequent traffic pattern. No mutation.
		return &Result{
			Message:        "No pending seat changes",
			OrganizationID: sub.OrganizationID,
		}, nil
	}
}

// findOrCreateCustomer maps an external billing customer to an organization.
// A brand-new customer can only be linked through checkout custom data:
// an organization id reference, or a slug as fallback. Without either the
// operation fails rather than guess.
func (r *Reconciler) findOrCreateCustomer(ctx context.Context, ev *SubscriptionEvent) (*Customer, error) {
	customer, err := r.store.GetCustomerByExternalID(ctx, ev.CustomerID)
	if err == nil {
		return customer, nil
	}
	if err != ErrCustomerNotFound {
		return nil, fmt.Errorf("lookup customer %d: %w", ev.CustomerID, err)
	}

	organization, err := r.resolveOrganization(ctx, ev)
	if err != nil {
		return nil, err
	}

	customer = &Customer{
		ID:                 idgen.WithPrefix("cus_"),
		OrganizationID:     organization.ID,
		ExternalCustomerID: ev.CustomerID,
		Email:              ev.CustomerEmail,
		CreatedAt:          time.Now(),
	}
	if err := r.store.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	r.logger.Info("billing customer linked",
		"customer_id", customer.ID,
		"external_customer_id", customer.ExternalCustomerID,
		"organization_id", customer.OrganizationID,
	)
	return customer, nil
}

func (r *Reconciler) resolveOrganization(ctx context.Context, ev *SubscriptionEvent) (*org.Organization, error) {
	if ev.OrganizationID != "" {
		o, err := r.orgs.Get(ctx, ev.OrganizationID)
		if err == nil {
			return o, nil
		}
		if err != org.ErrNotFound {
			return nil, fmt.Errorf("lookup organization %s: %w", ev.OrganizationID, err)
		}
		// Fall through to the slug when the id reference is unresolvable.
	}

	if ev.OrganizationSlug != "" {
		o, err := r.orgs.GetBySlug(ctx, ev.OrganizationSlug)
		if err == nil {
			return o, nil
		}
		if err != org.ErrNotFound {
			return nil, fmt.Errorf("lookup organization slug %s: %w", ev.OrganizationSlug, err)
		}
	}

	return nil, &ValidationError{
		Reason: "Cannot link new billing customer: checkout custom data does not identify an organization",
	}
}

// recomputeSeats derives the organization seat summary from the subscription.
// Best-effort: the subscription row is already committed, so a failure here
// is logged and counted but never fails the enclosing webhook.
func (r *Reconciler) recomputeSeats(ctx context.Context, sub *Subscription) {
	paid := PaidSeats(sub.Quantity)
	tier := org.TierFree
	if sub.Status == StatusActive && sub.Quantity > 0 {
		tier = org.TierActive
	}

	if err := r.orgs.UpdateSeats(ctx, sub.OrganizationID, paid, tier); err != nil {
		metrics.SeatRecomputeFailuresTotal.Inc()
		r.logger.Error("failed to update organization seat summary",
			"organization_id", sub.OrganizationID,
			"paid_seats", paid,
			"tier", tier,
			"error", err,
		)
		return
	}

	metrics.SubscriptionSeats.WithLabelValues(sub.OrganizationID).Set(float64(sub.Quantity))
	r.logger.Info("organization seats recomputed",
		"organization_id", sub.OrganizationID,
		"quantity", sub.Quantity,
		"paid_seats", paid,
		"tier", tier,
	)
}
