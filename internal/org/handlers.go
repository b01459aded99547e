package org

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/techmajster/time8-product-sub002/internal/idgen"
	"github.com/techmajster/time8-product-sub002/internal/validation"
)

// Handler provides HTTP endpoints for organization management.
type Handler struct {
	store Store
}

// NewHandler creates a new organization handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterAdminRoutes sets up the admin-only organization routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/organizations", h.CreateOrganization)
	r.GET("/organizations/:id", h.GetOrganization)
}

// CreateOrganization handles POST /v1/admin/organizations.
func (h *Handler) CreateOrganization(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Slug string `json:"slug" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and slug required"})
		return
	}

	req.Slug = validation.SanitizeSlug(req.Slug)
	if !validation.IsValidSlug(req.Slug) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_slug",
			"message": "slug must be 3-64 lowercase alphanumeric/hyphens, start/end with alphanumeric",
		})
		return
	}

	now := time.Now()
	o := &Organization{
		ID:               idgen.WithPrefix("org_"),
		Name:             validation.SanitizeString(req.Name, 200),
		Slug:             req.Slug,
		PaidSeats:        0,
		SubscriptionTier: TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.store.Create(c.Request.Context(), o); err != nil {
		if err == ErrSlugTaken {
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken", "message": "slug already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create organization"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"organization": o})
}

// GetOrganization handles GET /v1/admin/organizations/:id.
func (h *Handler) GetOrganization(c *gin.Context) {
	o, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load organization"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": o})
}
