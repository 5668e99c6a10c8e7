package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cortexflow/ragcore"
)

// Authorize validates the bearer token and stores the resulting
// principal in the request context. Token verification itself is an
// external collaborator; nil disables the check entirely.
func Authorize(auth ragcore.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "missing bearer token",
			})
			return
		}

		principal, err := auth.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "invalid token",
			})
			return
		}

		ctx := context.WithValue(c.Request.Context(), ragcore.PrincipalKey, principal)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
