package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	AdminTokenHeader = "X-Admin-Token"
	ActorHeader      = "X-Actor-Id"
)

// AdminToken guards maintenance routes with a shared secret. With no token
// configured the routes are closed.
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
