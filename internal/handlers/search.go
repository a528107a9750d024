package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dabubble/internal/directory"
)

// directoryService is the slice of the directory facade the search endpoints
// need.
type directoryService interface {
	Search(userID, input string) []directory.Result
	ResolveDMTarget(ctx context.Context, userID, targetID string) (string, error)
}

// SearchHandler manages directory search and DM resolution endpoints.
type SearchHandler struct {
	dir directoryService
}

// NewSearchHandler builds a SearchHandler.
func NewSearchHandler(dir directoryService) *SearchHandler {
	return &SearchHandler{dir: dir}
}

// Search handles GET /search?q=...
func (h *SearchHandler) Search(c *gin.Context) {
	userID := c.GetString("userID")
	results := h.dir.Search(userID, c.Query("q"))
	if results == nil {
		results = []directory.Result{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ResolveDM handles POST /dms/resolve.
func (h *SearchHandler) ResolveDM(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	threadID, err := h.dir.ResolveDMTarget(c.Request.Context(), userID, req.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": threadID})
}
