package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/techmajster/time8-product-sub002/internal/billing"
)

// Payload is the provider's wire envelope. Fields the pipeline depends on are
// pointers so absence is distinguishable from zero values during validation.
type Payload struct {
	Meta Meta `json:"meta"`
	Data Data `json:"data"`
}

// Meta describes the event itself.
type Meta struct {
	EventName  string     `json:"event_name"`
	EventID    string     `json:"event_id"`
	Timestamp  *int64     `json:"timestamp,omitempty"`
	CustomData CustomData `json:"custom_data"`
}

// CustomData is the checkout-time passthrough that links a new billing
// customer to an organization.
type CustomData struct {
	OrganizationID   string `json:"organization_id"`
	OrganizationSlug string `json:"organization_slug"`
}

// Data wraps the subscription object.
type Data struct {
	ID         string     `json:"id"`
	Attributes Attributes `json:"attributes"`
}

// Attributes is the subscription state snapshot inside the envelope.
type Attributes struct {
	Status                *string                `json:"status"`
	Quantity              *int                   `json:"quantity"`
	CustomerID            *int64                 `json:"customer_id"`
	VariantID             int64                  `json:"variant_id"`
	UserEmail             string                 `json:"user_email"`
	RenewsAt              *time.Time             `json:"renews_at"`
	EndsAt                *time.Time             `json:"ends_at"`
	TrialEndsAt           *time.Time             `json:"trial_ends_at"`
	FirstSubscriptionItem *FirstSubscriptionItem `json:"first_subscription_item"`
}

// FirstSubscriptionItem carries the authoritative seat quantity on payloads
// where the top-level quantity lags the line item.
type FirstSubscriptionItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// ParsePayload decodes the raw body. A decode failure is a schema rejection,
// not a server fault.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &billing.ValidationError{Reason: "Invalid payload structure"}
	}
	return &p, nil
}

// Validate checks that the envelope carries everything dispatch requires:
// identifying fields plus the status, quantity, and customer id attributes.
// Enum validity of the status is a separate, more specific rejection.
func (p *Payload) Validate() error {
	if p.Meta.EventName == "" || p.Meta.EventID == "" || p.Data.ID == "" {
		return &billing.ValidationError{Reason: "Invalid payload structure"}
	}
	attrs := p.Data.Attributes
	if attrs.Status == nil || attrs.Quantity == nil || attrs.CustomerID == nil {
		return &billing.ValidationError{Reason: "Invalid payload structure"}
	}
	if !billing.ValidStatus(billing.Status(*attrs.Status)) {
		return &billing.ValidationError{Reason: fmt.Sprintf("Invalid subscription status: %s", *attrs.Status)}
	}
	return nil
}

// ToEvent converts the wire envelope into the neutral event the reconciler
// consumes. The line-item quantity wins over the top-level one when present.
func (p *Payload) ToEvent() *billing.SubscriptionEvent {
	attrs := p.Data.Attributes

	quantity := 0
	if attrs.Quantity != nil {
		quantity = *attrs.Quantity
	}
	if attrs.FirstSubscriptionItem != nil {
		quantity = attrs.FirstSubscriptionItem.Quantity
	}

	var status billing.Status
	if attrs.Status != nil {
		status = billing.Status(*attrs.Status)
	}

	var customerID int64
	if attrs.CustomerID != nil {
		customerID = *attrs.CustomerID
	}

	return &billing.SubscriptionEvent{
		EventID:          p.Meta.EventID,
		EventName:        p.Meta.EventName,
		SubscriptionID:   p.Data.ID,
		Status:           status,
		Quantity:         quantity,
		CustomerID:       customerID,
		CustomerEmail:    attrs.UserEmail,
		VariantID:        attrs.VariantID,
		RenewsAt:         attrs.RenewsAt,
		EndsAt:           attrs.EndsAt,
		TrialEndsAt:      attrs.TrialEndsAt,
		OrganizationID:   p.Meta.CustomData.OrganizationID,
		OrganizationSlug: p.Meta.CustomData.OrganizationSlug,
	}
}
