package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/auth/session"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
)

const testCookie = "qad_session"

func testResolver(store session.Store) *auth.RoleResolver {
	return auth.NewRoleResolver(store, auth.NewRoleMapping(config.RolesConfig{
		AdminGroups:    []string{"Admin"},
		ApproverGroups: []string{"QA Approver", "Approver"},
		ViewerGroups:   []string{"Viewer"},
	}))
}

// newSession creates a live session in store and returns its signed token
func newSession(t *testing.T, store session.Store, groups ...string) (string, *auth.Session) {
	t.Helper()
	sess := &auth.Session{
		ID:       "sid-" + t.Name(),
		Identity: auth.Identity{Username: "jdoe", Groups: groups, Provider: "saml"},
	}
	require.NoError(t, store.Create(context.Background(), sess.ID, time.Hour))
	token, err := auth.IssueSessionToken(sess, time.Hour)
	require.NoError(t, err)
	return token, sess
}

func newAuthRouter(store session.Store, roles ...auth.Role) *gin.Engine {
	r := gin.New()
	r.Use(SessionAuthMiddleware(testCookie, store, testResolver(store)))
	if len(roles) > 0 {
		r.Use(RequireRole(roles...))
	}
	r.GET("/whoami", func(c *gin.Context) {
		sess, ok := GetSession(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user": sess.Identity.Username,
			"role": GetRole(c).String(),
			"id":   c.GetString(UserIDKey),
		})
	})
	return r
}

func TestSessionAuth_Cookie(t *testing.T) {
	store := session.NewMemoryStore()
	token, _ := newSession(t, store, "QA Approver")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	w := httptest.NewRecorder()
	newAuthRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"user":"jdoe","role":"approver","id":"jdoe"}`, w.Body.String())
}

func TestSessionAuth_BearerHeader(t *testing.T) {
	store := session.NewMemoryStore()
	token, _ := newSession(t, store, "Viewer")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	newAuthRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"viewer"`)
}

func TestSessionAuth_CachesRole(t *testing.T) {
	store := session.NewMemoryStore()
	token, sess := newSession(t, store, "Admin")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	newAuthRouter(store).ServeHTTP(httptest.NewRecorder(), req)

	cached, ok, err := store.GetRole(context.Background(), sess.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, auth.NormalizeRole(cached))
}

func TestSessionAuth_Rejections(t *testing.T) {
	store := session.NewMemoryStore()
	token, sess := newSession(t, store, "Viewer")

	tests := []struct {
		name    string
		prepare func(*http.Request)
		wantMsg string
	}{
		{"no credentials", func(*http.Request) {}, "authentication required"},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, "authentication required"},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer not.a.jwt") }, "invalid session"},
		{"logged out", func(r *http.Request) {
			_ = store.Delete(context.Background(), sess.ID)
			r.AddCookie(&http.Cookie{Name: testCookie, Value: token})
		}, "session expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			newAuthRouter(store).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
		})
	}
}

type brokenStore struct{ session.Store }

func (brokenStore) Exists(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestSessionAuth_StoreError(t *testing.T) {
	mem := session.NewMemoryStore()
	token, _ := newSession(t, mem, "Viewer")
	store := brokenStore{mem}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	w := httptest.NewRecorder()
	newAuthRouter(store).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetRole_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, auth.RoleNone, GetRole(c))
	_, ok := GetSession(c)
	assert.False(t, ok)
}
