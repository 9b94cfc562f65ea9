package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

const (
	userIDHeader = "X-User-Id"
	userIDKey    = "user_id"
)

// Identity reads the caller id resolved by the upstream gateway.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" || len(userID) > 128 {
			platformerrors.WriteUnauthorized(c, "missing or invalid "+userIDHeader+" header")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the caller id stored by Identity.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
