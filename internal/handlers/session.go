package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"dabubble/internal/mirror"
	"dabubble/internal/session"
)

// presenceService flips the user's online flag around login and logout.
type presenceService interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// SessionHandler manages the per-user session overlay: current channel
// resolution, explicit updates, and logout.
type SessionHandler struct {
	sessions session.StateStore
	mirror   *mirror.Mirror
	manager  *session.Manager
	presence presenceService
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(sessions session.StateStore, m *mirror.Mirror, manager *session.Manager, presence presenceService) *SessionHandler {
	return &SessionHandler{sessions: sessions, mirror: m, manager: manager, presence: presence}
}

// Resolve handles POST /session/resolve: computes the current channel for a
// just-loaded user, persists it, and switches the mirror's dynamic
// subscription to the caller's own record.
func (h *SessionHandler) Resolve(c *gin.Context) {
	userID := c.GetString("userID")
	user, ok := h.mirror.UserByID(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	state, err := h.sessions.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	if id, found := session.Resolve(user, h.mirror.Channels(), state.CurrentChannel); found {
		state.CurrentChannel = id
		if ch, ok := h.mirror.ChannelByID(id); ok {
			state.CurrentChannelName = ch.Name
		}
		if err := h.sessions.Save(c.Request.Context(), userID, state); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
			return
		}
	}

	if err := h.mirror.SetActiveUser(c.Request.Context(), userID); err != nil {
		log.Printf("set active user %s: %v", userID, err)
	}
	h.manager.Touch(userID)
	if err := h.presence.SetOnline(c.Request.Context(), userID, true); err != nil {
		log.Printf("set online %s: %v", userID, err)
	}

	c.JSON(http.StatusOK, gin.H{"session": state})
}

// Get handles GET /session.
func (h *SessionHandler) Get(c *gin.Context) {
	userID := c.GetString("userID")
	state, err := h.sessions.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": state})
}

// Update handles PUT /session: the client switched channel or toggled the
// thread panel.
func (h *SessionHandler) Update(c *gin.Context) {
	var req session.State
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.sessions.Save(c.Request.Context(), userID, req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}
	h.manager.Touch(userID)
	c.Status(http.StatusOK)
}

// Logout handles DELETE /session.
func (h *SessionHandler) Logout(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.sessions.Clear(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
		return
	}
	h.manager.Stop(userID)
	if err := h.presence.SetOnline(c.Request.Context(), userID, false); err != nil {
		log.Printf("set offline %s: %v", userID, err)
	}
	if err := h.mirror.SetActiveUser(c.Request.Context(), ""); err != nil {
		log.Printf("clear active user: %v", err)
	}
	c.Status(http.StatusOK)
}
