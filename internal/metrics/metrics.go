// Package metrics provides Prometheus instrumentation for the billing service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "time8",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "time8",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// WebhooksReceivedTotal counts inbound billing webhooks by event type.
	// Requests rejected before the envelope parses are not counted here.
	WebhooksReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "time8",
			Subsystem: "webhook",
			Name:      "received_total",
			Help:      "Total billing webhooks received by event type.",
		},
		[]string{"event_type"},
	)

	// WebhookOutcomesTotal counts webhook processing outcomes.
	WebhookOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "time8",
			Subsystem: "webhook",
			Name:      "outcomes_total",
			Help:      "Webhook outcomes: processed, failed, skipped, unauthorized, rate_limited.",
		},
		[]string{"outcome"},
	)

	// WebhookProcessingDuration observes end-to-end webhook handling time.
	WebhookProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "time8",
			Subsystem: "webhook",
			Name:      "processing_duration_seconds",
			Help:      "Webhook processing duration in seconds by event type.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// AuditWriteFailuresTotal counts billing event audit rows that failed to persist.
	// Audit writes are best-effort so these never surface to the provider.
	AuditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "time8",
			Subsystem: "webhook",
			Name:      "audit_write_failures_total",
			Help:      "Total billing event audit rows that failed to persist.",
		},
	)

	// SeatRecomputeFailuresTotal counts best-effort organization seat updates that failed.
	SeatRecomputeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "time8",
			Subsystem: "billing",
			Name:      "seat_recompute_failures_total",
			Help:      "Total organization seat recomputations that failed after the subscription write.",
		},
	)

	// SubscriptionSeats tracks the last reconciled billed quantity per organization.
	SubscriptionSeats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "time8",
			Subsystem: "billing",
			Name:      "subscription_seats",
			Help:      "Billed seat quantity by organization after the last reconciliation.",
		},
		[]string{"organization"},
	)

	// ActiveWebSocketClients tracks connected admin event-feed clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "time8",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "time8", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "time8", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "time8", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "time8", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WebhooksReceivedTotal,
		WebhookOutcomesTotal,
		WebhookProcessingDuration,
		AuditWriteFailuresTotal,
		SeatRecomputeFailuresTotal,
		SubscriptionSeats,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
