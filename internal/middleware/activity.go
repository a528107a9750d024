package middleware

import (
	"github.com/gin-gonic/gin"

	"dabubble/internal/session"
)

// ActivityMiddleware resets the caller's idle timer on every authenticated
// request. Must run after AuthMiddleware.
func ActivityMiddleware(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetString("userID"); userID != "" {
			manager.Touch(userID)
		}
		c.Next()
	}
}
