package billing

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxEventListLimit = 500

// Handler provides admin HTTP endpoints over the billing audit ledger.
type Handler struct {
	audit *AuditLog
}

// NewHandler creates a new billing admin handler.
func NewHandler(audit *AuditLog) *Handler {
	return &Handler{audit: audit}
}

// RegisterAdminRoutes sets up the admin-only billing routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/billing/events", h.ListEvents)
}

// ListEvents handles GET /v1/admin/billing/events?limit=N.
func (h *Handler) ListEvents(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit", "message": "limit must be a positive integer"})
			return
		}
		if n > maxEventListLimit {
			n = maxEventListLimit
		}
		limit = n
	}

	events, err := h.audit.Events(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list billing events"})
		return
	}
	if events == nil {
		events = []*EventRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
