package webhook

import (
	"strings"
	"testing"

	"github.com/techmajster/time8-product-sub002/internal/billing"
)

func TestParsePayload_RejectsNonJSON(t *testing.T) {
	if _, err := ParsePayload([]byte("not json at all")); !billing.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestValidate_RejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"missing event id", `{"meta":{"event_name":"subscription_created"},"data":{"id":"1","attributes":{"customer_id":9}}}`},
		{"missing data id", `{"meta":{"event_name":"subscription_created","event_id":"e1"},"data":{"attributes":{"customer_id":9}}}`},
		{"missing customer id", `{"meta":{"event_name":"subscription_created","event_id":"e1"},"data":{"id":"1","attributes":{"status":"active","quantity":1}}}`},
		{"missing quantity", `{"meta":{"event_name":"subscription_created","event_id":"e1"},"data":{"id":"1","attributes":{"status":"active","customer_id":9}}}`},
		{"missing status", `{"meta":{"event_name":"subscription_created","event_id":"e1"},"data":{"id":"1","attributes":{"quantity":1,"customer_id":9}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tc.body))
			if err != nil {
				t.Fatalf("ParsePayload: %v", err)
			}
			if err := p.Validate(); !billing.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidate_RejectsUnknownStatus(t *testing.T) {
	body := `{"meta":{"event_name":"subscription_created","event_id":"e1"},"data":{"id":"1","attributes":{"status":"mega_active","quantity":1,"customer_id":9}}}`
	p, err := ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	err = p.Validate()
	if !billing.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "mega_active") {
		t.Errorf("error should name the bad status, got %q", err.Error())
	}
}

func TestToEvent_LineItemQuantityWins(t *testing.T) {
	body := []byte(`{
		"meta": {
			"event_name": "subscription_updated",
			"event_id": "e1",
			"custom_data": {"organization_id": "org_1"}
		},
		"data": {
			"id": "ls_sub_1",
			"attributes": {
				"status": "active",
				"quantity": 3,
				"customer_id": 9001,
				"variant_id": 42,
				"user_email": "owner@acme.test",
				"first_subscription_item": {"id": 77, "quantity": 8}
			}
		}
	}`)

	p, err := ParsePayload(body)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ev := p.ToEvent()
	if ev.Quantity != 8 {
		t.Errorf("quantity = %d, want line item quantity 8", ev.Quantity)
	}
	if ev.Status != billing.StatusActive {
		t.Errorf("status = %s", ev.Status)
	}
	if ev.SubscriptionID != "ls_sub_1" || ev.CustomerID != 9001 {
		t.Errorf("ids not mapped: sub=%s cust=%d", ev.SubscriptionID, ev.CustomerID)
	}
	if ev.OrganizationID != "org_1" {
		t.Errorf("organization id = %s", ev.OrganizationID)
	}
}

func TestToEvent_TopLevelQuantityFallback(t *testing.T) {
	body := []byte(`{
		"meta": {"event_name": "subscription_created", "event_id": "e1"},
		"data": {"id": "ls_sub_1", "attributes": {"status": "active", "quantity": 5, "customer_id": 9001}}
	}`)

	p, _ := ParsePayload(body)
	if ev := p.ToEvent(); ev.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", ev.Quantity)
	}
}
