package util

import (
	"github.com/gin-gonic/gin"
)

// GetUserIDFromContext extracts the user ID set by the auth middleware.
// Returns the user ID and true if found; otherwise responds with 401
// Unauthorized and returns false.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		RespondUnauthorized(c)
		return "", false
	}
	userIDStr, ok := userID.(string)
	if !ok {
		RespondInternalError(c, "invalid user ID in context")
		return "", false
	}
	return userIDStr, true
}
