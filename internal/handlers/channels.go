package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dabubble/internal/messaging"
	"dabubble/internal/mirror"
	"dabubble/internal/models"
	"dabubble/internal/telemetry"
)

// channelService is the slice of the messaging facade the channel endpoints
// need.
type channelService interface {
	CreateChannel(ctx context.Context, userID, name, description string) (models.Channel, error)
	UpdateChannel(ctx context.Context, channelID, name, description string) error
	AddMembers(ctx context.Context, userID string, memberIDs []string) error
	LeaveChannel(ctx context.Context, userID, channelID string) error
}

// ChannelHandler manages channel CRUD and membership endpoints.
type ChannelHandler struct {
	svc    channelService
	mirror *mirror.Mirror
	audit  *telemetry.AuditEmitter
}

// NewChannelHandler builds a ChannelHandler.
func NewChannelHandler(svc channelService, m *mirror.Mirror, audit *telemetry.AuditEmitter) *ChannelHandler {
	return &ChannelHandler{svc: svc, mirror: m, audit: audit}
}

// CreateChannel handles POST /channels.
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	ch, err := h.svc.CreateChannel(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create channel"})
		return
	}

	emitAudit(c, h.audit, "INFO", "Channel created")
	c.JSON(http.StatusCreated, gin.H{"channel_id": ch.ID})
}

// ListChannels returns the channels the caller belongs to, in mirror order.
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	userID := c.GetString("userID")
	channels := h.mirror.ChannelsFor(userID)

	type channelResponse struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Owner       string `json:"owner"`
		Members     int    `json:"members"`
	}
	responses := make([]channelResponse, 0, len(channels))
	for _, ch := range channels {
		responses = append(responses, channelResponse{
			ID:          ch.ID,
			Name:        ch.Name,
			Description: ch.Description,
			Owner:       ch.Owner,
			Members:     len(ch.Members),
		})
	}
	c.JSON(http.StatusOK, gin.H{"channels": responses})
}

// GetChannelMessages returns the channel's posts from the mirror.
func (h *ChannelHandler) GetChannelMessages(c *gin.Context) {
	channelID := c.Param("channel_id")
	ch, ok := h.mirror.ChannelByID(channelID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	userID := c.GetString("userID")
	if !ch.HasMember(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a channel member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": ch.Posts})
}

// UpdateChannel handles PUT /channels/:channel_id.
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.UpdateChannel(c.Request.Context(), c.Param("channel_id"), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, messaging.ErrNotFound) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update channel"})
		return
	}
	c.Status(http.StatusOK)
}

// AddMembers handles POST /channels/members for the current channel.
func (h *ChannelHandler) AddMembers(c *gin.Context) {
	var req struct {
		MemberIDs []string `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	err := h.svc.AddMembers(c.Request.Context(), userID, req.MemberIDs)
	if err != nil {
		// No resolvable current channel is a real error here, surfaced to the
		// user rather than absorbed.
		if errors.Is(err, messaging.ErrNoChannelContext) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add members"})
		return
	}

	emitAudit(c, h.audit, "INFO", "Members added")
	c.Status(http.StatusOK)
}

// LeaveChannel handles DELETE /channels/:channel_id/members/me.
func (h *ChannelHandler) LeaveChannel(c *gin.Context) {
	userID := c.GetString("userID")
	err := h.svc.LeaveChannel(c.Request.Context(), userID, c.Param("channel_id"))
	if err != nil {
		if errors.Is(err, messaging.ErrNotFound) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave channel"})
		return
	}
	c.Status(http.StatusOK)
}
