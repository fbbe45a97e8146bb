// Package middleware provides Gin HTTP middleware for session authentication, role checks,
// rate limiting, request logging and security headers.
//
// Middleware ordering is fixed in router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → SecurityHeaders → SessionAuth → RateLimit → RequireRole → Handler
//
// Rate limiting runs after session auth so authenticated users are keyed by username
// rather than by a shared proxy address.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/auth/session"
)

// Context keys set by SessionAuthMiddleware
const (
	SessionKey = "session"
	RoleKey    = "role"
	UserIDKey  = "user_id"
)

// SessionAuthMiddleware authenticates the request from the session cookie or, failing that,
// an "Authorization: Bearer" header. The token must verify and its session must still be
// live in the store. On success the session, the resolved role and the username are stored
// in the gin context.
func SessionAuthMiddleware(cookieName string, store session.Store, resolver *auth.RoleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		sess, err := auth.ParseSessionToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid session",
			})
			return
		}

		live, err := store.Exists(c.Request.Context(), sess.ID)
		if err != nil {
			c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "failed to verify session",
			})
			return
		}
		if !live {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "session expired",
			})
			return
		}

		c.Set(SessionKey, sess)
		c.Set(RoleKey, resolver.Resolve(c.Request.Context(), sess))
		c.Set(UserIDKey, sess.Identity.Username)

		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// GetSession returns the authenticated session, if any
func GetSession(c *gin.Context) (*auth.Session, bool) {
	v, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := v.(*auth.Session)
	return sess, ok && sess != nil
}

// GetRole returns the role resolved for the request, RoleNone when unauthenticated
func GetRole(c *gin.Context) auth.Role {
	v, exists := c.Get(RoleKey)
	if !exists {
		return auth.RoleNone
	}
	role, _ := v.(auth.Role)
	return role
}
