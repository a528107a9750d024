package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dabubble/internal/mirror"
	"dabubble/internal/models"
	"dabubble/internal/telemetry"
)

type profileService interface {
	UpdateProfile(ctx context.Context, userID, name, avatar string) error
}

// UserHandler serves the user directory and profile updates.
type UserHandler struct {
	svc    profileService
	mirror *mirror.Mirror
	audit  *telemetry.AuditEmitter
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(svc profileService, m *mirror.Mirror, audit *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{svc: svc, mirror: m, audit: audit}
}

type userResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Online bool   `json:"online"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar, Online: u.Online}
}

// ListUsers handles GET /users: the full directory without DM payloads.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users := h.mirror.Users()
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// UpdateProfile handles PUT /profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.svc.UpdateProfile(c.Request.Context(), userID, req.Name, req.Avatar); err != nil {
		emitAudit(c, h.audit, "ERROR", "failed to update profile: "+err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.Status(http.StatusOK)
}
