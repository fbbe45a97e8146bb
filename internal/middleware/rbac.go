// rbac.go provides the role check applied to every dashboard API route.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/qa-dashboard/internal/auth"
)

// RequireRole rejects the request with 403 unless the resolved role is one of roles.
// It must run after SessionAuthMiddleware.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetRole(c).In(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient permissions",
			})
			return
		}
		c.Next()
	}
}
