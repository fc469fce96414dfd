// Package handler exposes the complaint workflow over HTTP and WebSocket.
package handler

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/attachments"
	"complaintdesk/backend/internal/auth"
	"complaintdesk/backend/internal/changefeed"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/metrics"
	"complaintdesk/backend/internal/storage"
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler holds the services the routes call into.
type Handler struct {
	Complaints *complaint.Service
	Profiles   storage.ProfileDirectory
	Auth       *auth.Authenticator
	Hub        *changefeed.Hub
	// Attachments may be nil, in which case uploads answer 503.
	Attachments attachments.Store
	// Ready reports whether the backing stores are reachable. May be nil.
	Ready func(ctx context.Context) error
	Now   func() time.Time
}

func NewHandler(svc *complaint.Service, profiles storage.ProfileDirectory, a *auth.Authenticator, hub *changefeed.Hub) *Handler {
	return &Handler{
		Complaints: svc,
		Profiles:   profiles,
		Auth:       a,
		Hub:        hub,
		Now:        time.Now,
	}
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")
	api.Use(h.Auth.Middleware())

	api.GET("/me", h.Me)
	api.POST("/complaints", h.CreateComplaint)
	api.GET("/complaints", h.ListComplaints)
	api.GET("/complaints/:id", h.GetComplaint)
	api.PATCH("/complaints/:id/status", auth.RequireAdmin(), h.TransitionComplaint)
	api.GET("/complaints/:id/history", h.ComplaintHistory)
	api.GET("/stats", auth.RequireAdmin(), h.Stats)
	api.POST("/attachments", h.UploadAttachment)
	api.GET("/ws", h.ServeWebSocket)
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			log.Printf("WARNING: Health check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFromContext(c.Request.Context())
	return id
}

// respondError writes the status code matching the error kind.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}
