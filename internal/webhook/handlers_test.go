package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/techmajster/time8-product-sub002/internal/billing"
	"github.com/techmajster/time8-product-sub002/internal/org"
	"github.com/techmajster/time8-product-sub002/internal/ratelimit"
)

const testSecret = "whsec_test"

type webhookFixture struct {
	router *gin.Engine
	store  *billing.MemoryStore
	orgs   *org.MemoryStore
	events *billing.EventMemoryStore
}

func setupWebhook(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := billing.NewMemoryStore()
	orgs := org.NewMemoryStore()
	events := billing.NewEventMemoryStore()

	if err := orgs.Create(context.Background(), &org.Organization{
		ID: "org_1", Name: "Acme", Slug: "acme", SubscriptionTier: org.TierFree,
	}); err != nil {
		t.Fatalf("seed organization: %v", err)
	}

	reconciler := billing.NewReconciler(store, orgs, logger)
	audit := billing.NewAuditLog(events, logger)
	handler := NewHandler(testSecret, 300*time.Second, reconciler, audit, nil)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)

	return &webhookFixture{router: r, store: store, orgs: orgs, events: events}
}

func webhookBody(eventName, eventID, subID string, quantity int) string {
	return fmt.Sprintf(`{
		"meta": {
			"event_name": %q,
			"event_id": %q,
			"custom_data": {"organization_id": "org_1"}
		},
		"data": {
			"id": %q,
			"attributes": {
				"status": "active",
				"quantity": %d,
				"customer_id": 9001,
				"variant_id": 42,
				"user_email": "owner@acme.test"
			}
		}
	}`, eventName, eventID, subID, quantity)
}

func (f *webhookFixture) post(body, signature string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/webhooks/lemonsqueezy", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func (f *webhookFixture) postSigned(body string) *httptest.ResponseRecorder {
	return f.post(body, Sign(testSecret, []byte(body)))
}

func TestWebhook_CreatedFlow(t *testing.T) {
	f := setupWebhook(t)

	body := webhookBody("subscription_created", "evt_1", "ls_sub_1", 10)
	w := f.postSigned(body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	sub, err := f.store.GetSubscriptionByExternalID(context.Background(), "ls_sub_1")
	if err != nil {
		t.Fatalf("subscription not created: %v", err)
	}
	if sub.Quantity != 10 || sub.CurrentSeats != 10 {
		t.Errorf("quantity = %d currentSeats = %d", sub.Quantity, sub.CurrentSeats)
	}

	o, _ := f.orgs.Get(context.Background(), "org_1")
	if o.PaidSeats != 7 || o.SubscriptionTier != org.TierActive {
		t.Errorf("paidSeats = %d tier = %s", o.PaidSeats, o.SubscriptionTier)
	}

	events, _ := f.events.ListEvents(context.Background(), 10)
	if len(events) != 1 || events[0].Status != billing.EventProcessed {
		t.Errorf("expected one processed audit row, got %+v", events)
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := setupWebhook(t)

	body := webhookBody("subscription_created", "evt_1", "ls_sub_1", 10)
	w := f.post(body, "sha256=0000000000000000000000000000000000000000000000000000000000000000")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}

	// Nothing reaches the stores on an authentication failure.
	if _, err := f.store.GetSubscriptionByExternalID(context.Background(), "ls_sub_1"); err != billing.ErrSubscriptionNotFound {
		t.Error("subscription must not be created from an unauthenticated request")
	}
	events, _ := f.events.ListEvents(context.Background(), 10)
	if len(events) != 0 {
		t.Errorf("expected no audit rows, got %d", len(events))
	}
}

func TestWebhook_MissingSignature(t *testing.T) {
	f := setupWebhook(t)
	w := f.post(webhookBody("subscription_created", "evt_1", "ls_sub_1", 10), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestWebhook_ReplaySkipped(t *testing.T) {
	f := setupWebhook(t)

	body := webhookBody("subscription_created", "evt_1", "ls_sub_1", 5)
	if w := f.postSigned(body); w.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", w.Code)
	}

	w := f.postSigned(body)
	if w.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp["message"] != "Event already processed" {
		t.Errorf("message = %q", resp["message"])
	}

	// The replay leaves no second ledger row.
	events, _ := f.events.ListEvents(context.Background(), 10)
	if len(events) != 1 {
		t.Errorf("expected one audit row after replay, got %d", len(events))
	}
}

func TestWebhook_UnknownEventTypeSkipped(t *testing.T) {
	f := setupWebhook(t)

	body := webhookBody("subscription_plan_changed", "evt_x", "ls_sub_1", 5)
	w := f.postSigned(body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for unknown event type, got %d", w.Code)
	}

	events, _ := f.events.ListEvents(context.Background(), 10)
	if len(events) != 1 || events[0].Status != billing.EventSkipped {
		t.Errorf("expected one skipped audit row, got %+v", events)
	}
}

func TestWebhook_InvalidStatusRejectedAndAudited(t *testing.T) {
	f := setupWebhook(t)

	body := strings.Replace(
		webhookBody("subscription_created", "evt_bad", "ls_sub_1", 5),
		`"active"`, `"mega_active"`, 1)
	w := f.postSigned(body)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for invalid status, got %d: %s", w.Code, w.Body.String())
	}

	events, _ := f.events.ListEvents(context.Background(), 10)
	if len(events) != 1 || events[0].Status != billing.EventFailed {
		t.Errorf("expected one failed audit row, got %+v", events)
	}
	if !strings.Contains(events[0].ErrorMessage, "mega_active") {
		t.Errorf("error message should name the bad status, got %q", events[0].ErrorMessage)
	}
}

func TestWebhook_StaleTimestampRejected(t *testing.T) {
	f := setupWebhook(t)

	stale := time.Now().Add(-10 * time.Minute).Unix()
	body := fmt.Sprintf(`{
		"meta": {"event_name": "subscription_created", "event_id": "evt_old", "timestamp": %d},
		"data": {"id": "ls_sub_1", "attributes": {"status": "active", "quantity": 5, "customer_id": 9001}}
	}`, stale)

	w := f.postSigned(body)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for stale timestamp, got %d", w.Code)
	}
}

func TestWebhook_RateLimitBeforeSignature(t *testing.T) {
	f := setupWebhook(t)
	gin.SetMode(gin.TestMode)

	limiter := ratelimit.New(ratelimit.Config{MaxRequests: 2, Window: time.Minute})
	defer limiter.Stop()

	r := gin.New()
	v1 := r.Group("/v1", limiter.Middleware())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(testSecret, 300*time.Second,
		billing.NewReconciler(f.store, f.orgs, logger),
		billing.NewAuditLog(f.events, logger), nil)
	handler.RegisterRoutes(v1)

	// Unsigned requests burn the budget, proving the limiter runs first.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/v1/webhooks/lemonsqueezy", strings.NewReader("{}"))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("request %d: expected 401, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/webhooks/lemonsqueezy", strings.NewReader("{}"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 once over the limit, got %d", w.Code)
	}
}

func TestWebhook_HealthEndpoint(t *testing.T) {
	f := setupWebhook(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/webhooks/lemonsqueezy/health", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Status           string `json:"status"`
		SecretConfigured bool   `json:"secret_configured"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !resp.SecretConfigured {
		t.Error("secret_configured should be true")
	}
	if strings.Contains(w.Body.String(), testSecret) {
		t.Error("health response must not expose the secret")
	}
}

func TestWebhook_PaymentFailedKeepsAccess(t *testing.T) {
	f := setupWebhook(t)

	if w := f.postSigned(webhookBody("subscription_created", "evt_1", "ls_sub_1", 10)); w.Code != http.StatusOK {
		t.Fatalf("create: %d", w.Code)
	}
	if w := f.postSigned(webhookBody("subscription_payment_failed", "evt_2", "ls_sub_1", 10)); w.Code != http.StatusOK {
		t.Fatalf("payment_failed: %d", w.Code)
	}

	sub, _ := f.store.GetSubscriptionByExternalID(context.Background(), "ls_sub_1")
	if sub.Status != billing.StatusPastDue || sub.CurrentSeats != 10 {
		t.Errorf("status = %s currentSeats = %d", sub.Status, sub.CurrentSeats)
	}
}

func TestWebhook_CancelledRevokesSeats(t *testing.T) {
	f := setupWebhook(t)

	f.postSigned(webhookBody("subscription_created", "evt_1", "ls_sub_1", 10))

	body := strings.Replace(
		webhookBody("subscription_cancelled", "evt_2", "ls_sub_1", 10),
		`"active"`, `"cancelled"`, 1)
	if w := f.postSigned(body); w.Code != http.StatusOK {
		t.Fatalf("cancel: %d", w.Code)
	}

	o, _ := f.orgs.Get(context.Background(), "org_1")
	if o.PaidSeats != 0 || o.SubscriptionTier != org.TierFree {
		t.Errorf("paidSeats = %d tier = %s, want 0/free", o.PaidSeats, o.SubscriptionTier)
	}
}
