package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dabubble/internal/messaging"
	"dabubble/internal/models"
	"dabubble/internal/telemetry"
	"dabubble/internal/ws"
)

// messageService is the slice of the messaging facade the message endpoints
// need.
type messageService interface {
	PostNewMessage(ctx context.Context, userID, text string) (models.Post, string, error)
	PostThreadReply(ctx context.Context, userID, parentPostID, text string) (models.Post, string, error)
	EditMessage(ctx context.Context, userID, postID, newText string, isThreadReply bool) (string, error)
	AddReaction(ctx context.Context, userID, postID, emoji string) (string, error)
	RemoveReaction(ctx context.Context, userID, postID, emoji string) (string, error)
}

// MessageHandler manages post, thread-reply, edit and reaction endpoints.
//
// Absence-of-data conditions (no current channel, unknown post) are not
// errors here: the facade reports them as the ErrNotFound family and the
// handler answers 204, matching the silent no-op behavior clients rely on.
type MessageHandler struct {
	svc   messageService
	hub   *ws.Hub
	audit *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(svc messageService, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{svc: svc, hub: hub, audit: audit}
}

// PostMessage handles POST /messages.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	post, conversationID, err := h.svc.PostNewMessage(c.Request.Context(), userID, req.Text)
	if err != nil {
		h.respondError(c, err, "could not post message")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(conversationID, models.ChatEvent{Type: "message", ConversationID: conversationID, Post: &post})
	}
	emitAudit(c, h.audit, "INFO", "Message posted")
	c.JSON(http.StatusCreated, gin.H{"post": post, "conversation_id": conversationID})
}

// PostThreadReply handles POST /messages/:post_id/thread.
func (h *MessageHandler) PostThreadReply(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	reply, conversationID, err := h.svc.PostThreadReply(c.Request.Context(), userID, c.Param("post_id"), req.Text)
	if err != nil {
		h.respondError(c, err, "could not post reply")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(conversationID, models.ChatEvent{Type: "thread_reply", ConversationID: conversationID, Post: &reply, PostID: c.Param("post_id")})
	}
	emitAudit(c, h.audit, "INFO", "Thread reply posted")
	c.JSON(http.StatusCreated, gin.H{"post": reply, "conversation_id": conversationID})
}

// EditMessage handles PUT /messages/:post_id.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	var req struct {
		Text        string `json:"text" binding:"required"`
		ThreadReply bool   `json:"thread_reply"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	postID := c.Param("post_id")
	conversationID, err := h.svc.EditMessage(c.Request.Context(), userID, postID, req.Text, req.ThreadReply)
	if err != nil {
		h.respondError(c, err, "could not edit message")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(conversationID, models.ChatEvent{Type: "message_edited", ConversationID: conversationID, PostID: postID})
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID})
}

// AddReaction handles POST /messages/:post_id/reactions.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	postID := c.Param("post_id")
	conversationID, err := h.svc.AddReaction(c.Request.Context(), userID, postID, req.Emoji)
	if err != nil {
		h.respondError(c, err, "could not add reaction")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(conversationID, models.ChatEvent{Type: "reaction", ConversationID: conversationID, PostID: postID})
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID})
}

// RemoveReaction handles DELETE /messages/:post_id/reactions/:emoji.
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	userID := c.GetString("userID")
	postID := c.Param("post_id")
	conversationID, err := h.svc.RemoveReaction(c.Request.Context(), userID, postID, c.Param("emoji"))
	if err != nil {
		h.respondError(c, err, "could not remove reaction")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(conversationID, models.ChatEvent{Type: "reaction", ConversationID: conversationID, PostID: postID})
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID})
}

func (h *MessageHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, messaging.ErrNotFound):
		c.Status(http.StatusNoContent)
	case errors.Is(err, messaging.ErrEmptyText):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		emitAudit(c, h.audit, "ERROR", fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
