package webhook

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/techmajster/time8-product-sub002/internal/billing"
	"github.com/techmajster/time8-product-sub002/internal/logging"
	"github.com/techmajster/time8-product-sub002/internal/metrics"
	"github.com/techmajster/time8-product-sub002/internal/traces"
)

// Feed receives processed event outcomes for live observers. The hub in
// internal/realtime implements it; a nil feed disables broadcasting.
type Feed interface {
	BroadcastEvent(eventType, eventID string, status billing.EventStatus, message string)
}

// eventHandler is one reconciler dispatch target.
type eventHandler func(ctx context.Context, ev *billing.SubscriptionEvent) (*billing.Result, error)

// Handler terminates the provider's webhook requests.
type Handler struct {
	secret     string
	tolerance  time.Duration
	reconciler *billing.Reconciler
	audit      *billing.AuditLog
	feed       Feed

	routes map[string]eventHandler
}

// NewHandler creates the webhook handler. feed may be nil.
func NewHandler(secret string, tolerance time.Duration, reconciler *billing.Reconciler, audit *billing.AuditLog, feed Feed) *Handler {
	h := &Handler{
		secret:     secret,
		tolerance:  tolerance,
		reconciler: reconciler,
		audit:      audit,
		feed:       feed,
	}
	h.routes = map[string]eventHandler{
		"subscription_created":         reconciler.HandleCreated,
		"subscription_updated":         reconciler.HandleUpdated,
		"subscription_cancelled":       reconciler.HandleCancelled,
		"subscription_expired":         reconciler.HandleCancelled,
		"subscription_payment_failed":  reconciler.HandlePaymentFailed,
		"subscription_payment_success": reconciler.HandlePaymentSuccess,
		"subscription_paused":          reconciler.HandlePaused,
		"subscription_unpaused":        reconciler.HandleResumed,
		"subscription_resumed":         reconciler.HandleResumed,
	}
	return h
}

// RegisterRoutes sets up the webhook endpoints. The caller attaches
// rate limiting middleware to the group before registering.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/lemonsqueezy", h.HandleWebhook)
	r.GET("/webhooks/lemonsqueezy/health", h.Health)
}

// HandleWebhook processes POST /v1/webhooks/lemonsqueezy.
//
// Order matters: rate limiting runs as group middleware before this handler,
// then signature, then parse, then idempotency, then dispatch. Every path
// that knows the event id writes exactly one audit row.
func (h *Handler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logging.L(ctx)
	start := time.Now()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.WebhookOutcomesTotal.WithLabelValues("failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to read request body"})
		return
	}

	if res := VerifySignature(h.secret, body, c.GetHeader(SignatureHeader)); !res.Valid {
		metrics.WebhookOutcomesTotal.WithLabelValues("unauthorized").Inc()
		log.Warn("webhook signature rejected", "reason", res.Reason, "remote_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid signature"})
		return
	}

	payload, err := ParsePayload(body)
	if err != nil {
		metrics.WebhookOutcomesTotal.WithLabelValues("unauthorized").Inc()
		log.Warn("webhook payload undecodable", "remote_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_payload", "message": "Invalid payload structure"})
		return
	}

	eventType := payload.Meta.EventName
	eventID := payload.Meta.EventID
	if eventType != "" {
		metrics.WebhooksReceivedTotal.WithLabelValues(eventType).Inc()
	}

	ctx, span := traces.StartSpan(ctx, "webhook.process",
		traces.EventType(eventType), traces.EventID(eventID))
	defer span.End()

	if !CheckTimestamp(payload.Meta.Timestamp, h.tolerance, time.Now()) {
		metrics.WebhookOutcomesTotal.WithLabelValues("unauthorized").Inc()
		if eventID != "" {
			h.audit.Record(ctx, eventType, eventID, body, billing.EventFailed, "timestamp outside tolerance")
		}
		log.Warn("webhook timestamp outside tolerance", "event_id", eventID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Event timestamp outside allowed window"})
		return
	}

	if err := payload.Validate(); err != nil {
		metrics.WebhookOutcomesTotal.WithLabelValues("unauthorized").Inc()
		if eventID != "" {
			h.audit.Record(ctx, eventType, eventID, body, billing.EventFailed, err.Error())
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_payload", "message": err.Error()})
		return
	}

	if h.audit.AlreadyProcessed(ctx, eventID) {
		metrics.WebhookOutcomesTotal.WithLabelValues("skipped").Inc()
		log.Info("duplicate webhook delivery skipped", "event_id", eventID, "event_type", eventType)
		c.JSON(http.StatusOK, gin.H{"message": "Event already processed"})
		return
	}

	handle, known := h.routes[eventType]
	if !known {
		metrics.WebhookOutcomesTotal.WithLabelValues("skipped").Inc()
		h.audit.Record(ctx, eventType, eventID, body, billing.EventSkipped, "")
		h.broadcast(eventType, eventID, billing.EventSkipped, "event type not handled")
		log.Info("unhandled webhook event type", "event_id", eventID, "event_type", eventType)
		c.JSON(http.StatusOK, gin.H{"message": "Event type not handled"})
		return
	}

	result, err := handle(ctx, payload.ToEvent())
	metrics.WebhookProcessingDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

	if err != nil {
		h.audit.Record(ctx, eventType, eventID, body, billing.EventFailed, err.Error())
		h.broadcast(eventType, eventID, billing.EventFailed, err.Error())

		if billing.IsValidation(err) {
			metrics.WebhookOutcomesTotal.WithLabelValues("unauthorized").Inc()
			log.Warn("webhook payload rejected", "event_id", eventID, "event_type", eventType, "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_payload", "message": err.Error()})
			return
		}

		metrics.WebhookOutcomesTotal.WithLabelValues("failed").Inc()
		log.Error("webhook processing failed", "event_id", eventID, "event_type", eventType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to process event"})
		return
	}

	h.audit.Record(ctx, eventType, eventID, body, billing.EventProcessed, "")
	h.broadcast(eventType, eventID, billing.EventProcessed, result.Message)
	metrics.WebhookOutcomesTotal.WithLabelValues("processed").Inc()
	log.Info("webhook processed",
		"event_id", eventID,
		"event_type", eventType,
		"organization_id", result.OrganizationID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	c.JSON(http.StatusOK, gin.H{"message": result.Message})
}

// Health handles GET /v1/webhooks/lemonsqueezy/health. It reports whether the
// endpoint is able to authenticate deliveries without exposing the secret.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"secret_configured": h.secret != "",
	})
}

func (h *Handler) broadcast(eventType, eventID string, status billing.EventStatus, message string) {
	if h.feed != nil {
		h.feed.BroadcastEvent(eventType, eventID, status, message)
	}
}
