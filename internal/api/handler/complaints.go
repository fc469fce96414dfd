package handler

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type transitionRequest struct {
	Status  models.Status `json:"status"`
	Remarks string        `json:"remarks"`
}

type meResponse struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	Email  string      `json:"email,omitempty"`
	Name   string      `json:"name"`
}

func (h *Handler) Me(c *gin.Context) {
	id := identity(c)
	resp := meResponse{UserID: id.UserID, Role: id.Role}

	profile, err := h.Profiles.GetProfile(c.Request.Context(), id.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		respondError(c, apperr.Persistence("handler.Me", err))
		return
	}
	if profile != nil {
		resp.Email = profile.Email
	}
	resp.Name = profile.DisplayName()
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateComplaint(c *gin.Context) {
	var in models.NewComplaint
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	created, err := h.Complaints.Create(c.Request.Context(), identity(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListComplaints returns the caller's complaints, or every complaint for administrators.
func (h *Handler) ListComplaints(c *gin.Context) {
	list, err := h.Complaints.List(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetComplaint(c *gin.Context) {
	found, err := h.Complaints.Get(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *Handler) TransitionComplaint(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updated, err := h.Complaints.Transition(c.Request.Context(), identity(c), c.Param("id"), req.Status, req.Remarks)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) ComplaintHistory(c *gin.Context) {
	history, err := h.Complaints.History(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) Stats(c *gin.Context) {
	summary, err := h.Complaints.Stats(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       summary.Total,
		"pending":     summary.Pending(),
		"by_status":   summary.ByStatus,
		"by_category": summary.ByCategory,
	})
}
