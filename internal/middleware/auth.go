package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openforum/backend/internal/auth"
	"github.com/openforum/backend/internal/util"
)

// AuthMiddleware validates the bearer credential on protected routes and
// stores the resolved identity in the gin context.
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if auth := c.GetHeader("Authorization"); auth != "" {
			token = strings.TrimPrefix(auth, "Bearer ")
		}

		identity, err := authService.VerifyAccess(token)
		if err != nil {
			util.RespondUnauthorized(c, "invalid or missing token")
			c.Abort()
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("username", identity.Username)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id set by AuthMiddleware
func CurrentUserID(c *gin.Context) string {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
