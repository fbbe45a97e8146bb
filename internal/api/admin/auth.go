// auth.go implements HTTP handlers for SSO login (SAML or OIDC), the SAML ACS and metadata
// endpoints, the OIDC callback, logout and the current-user endpoint.
package admin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/auth/session"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/middleware"
)

const (
	stateCookie = "qad_oidc_state"
	stateTTL    = 5 * time.Minute
)

// SAMLProvider is the SAML service provider
type SAMLProvider interface {
	ServeMetadata(w http.ResponseWriter, r *http.Request)
	StartLogin(w http.ResponseWriter, r *http.Request)
	CompleteLogin(w http.ResponseWriter, r *http.Request) (*auth.Identity, string, error)
}

// OIDCProvider is the OpenID Connect relying party
type OIDCProvider interface {
	GetAuthURL(state string) string
	GetEndSessionEndpoint() string
	Authenticate(ctx context.Context, code string) (*auth.Identity, error)
}

// UserStore records users on login
type UserStore interface {
	UpsertFromSSO(ctx context.Context, user *models.User) (*models.User, error)
}

// AuthHandlers handles authentication-related endpoints
type AuthHandlers struct {
	cfg      *config.Config
	sessions session.Store
	users    UserStore
	saml     SAMLProvider
	oidc     OIDCProvider
}

// NewAuthHandlers creates a new AuthHandlers instance. At most one of samlProvider and
// oidcProvider is expected to be set, matching auth.provider.
func NewAuthHandlers(cfg *config.Config, sessions session.Store, users UserStore, samlProvider SAMLProvider, oidcProvider OIDCProvider) *AuthHandlers {
	return &AuthHandlers{
		cfg:      cfg,
		sessions: sessions,
		users:    users,
		saml:     samlProvider,
		oidc:     oidcProvider,
	}
}

// generateState generates a random state string for OAuth
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// stateKey namespaces pending OIDC states in the session store
func stateKey(state string) string {
	return "oidc-state:" + state
}

// @Summary      Start SSO login
// @Description  Redirects the browser to the configured identity provider (SAML or OIDC)
// @Tags         Authentication
// @Success      302  {object}  string  "Redirects to the identity provider"
// @Failure      400  {object}  map[string]interface{}  "SSO not configured"
// @Router       /auth/login [get]
// LoginHandler initiates the SSO login flow
// GET /auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch {
		case h.saml != nil:
			h.saml.StartLogin(c.Writer, c.Request)
			c.Abort()

		case h.oidc != nil:
			state, err := generateState()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
				return
			}
			if err := h.sessions.Create(c.Request.Context(), stateKey(state), stateTTL); err != nil {
				slog.Error("failed to store login state", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(stateCookie, state, int(stateTTL.Seconds()), "/", "", h.cfg.Auth.Session.SecureCookie, true)
			c.Redirect(http.StatusFound, h.oidc.GetAuthURL(state))

		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "SSO is not configured"})
		}
	}
}

// @Summary      SAML assertion consumer service
// @Tags         Authentication
// @Accept       x-www-form-urlencoded
// @Success      302  {object}  string  "Redirects to the dashboard with a session cookie"
// @Failure      401  {object}  map[string]interface{}  "Invalid SAML response"
// @Router       /auth/saml/acs [post]
// SAMLACSHandler completes a SAML login
// POST /auth/saml/acs
func (h *AuthHandlers) SAMLACSHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.saml == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "SAML is not configured"})
			return
		}
		identity, redirectURI, err := h.saml.CompleteLogin(c.Writer, c.Request)
		if err != nil {
			slog.Warn("SAML login rejected", "error", err, "client_ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "SAML authentication failed"})
			return
		}
		h.completeLogin(c, identity, redirectURI)
	}
}

// SAMLMetadataHandler serves the service provider metadata document
// GET /auth/saml/metadata
func (h *AuthHandlers) SAMLMetadataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.saml == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "SAML is not configured"})
			return
		}
		h.saml.ServeMetadata(c.Writer, c.Request)
	}
}

// @Summary      OIDC callback
// @Tags         Authentication
// @Param        code   query  string  true  "Authorization code"
// @Param        state  query  string  true  "State issued by /auth/login"
// @Success      302  {object}  string  "Redirects to the dashboard with a session cookie"
// @Failure      400  {object}  map[string]interface{}  "Invalid state"
// @Failure      401  {object}  map[string]interface{}  "Code exchange failed"
// @Router       /auth/oidc/callback [get]
// OIDCCallbackHandler completes an OIDC login
// GET /auth/oidc/callback?code=...&state=...
func (h *AuthHandlers) OIDCCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.oidc == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "OIDC is not configured"})
			return
		}
		ctx := c.Request.Context()

		state := c.Query("state")
		cookieState, _ := c.Cookie(stateCookie)
		if state == "" || state != cookieState {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state parameter"})
			return
		}
		pending, err := h.sessions.Exists(ctx, stateKey(state))
		if err != nil || !pending {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login session expired, please try again"})
			return
		}
		// States are single use
		_ = h.sessions.Delete(ctx, stateKey(state))
		c.SetCookie(stateCookie, "", -1, "/", "", h.cfg.Auth.Session.SecureCookie, true)

		if errParam := c.Query("error"); errParam != "" {
			slog.Warn("OIDC provider returned an error", "error", errParam, "description", c.Query("error_description"))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "OIDC authentication failed"})
			return
		}

		identity, err := h.oidc.Authenticate(ctx, c.Query("code"))
		if err != nil {
			slog.Warn("OIDC login rejected", "error", err, "client_ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "OIDC authentication failed"})
			return
		}
		h.completeLogin(c, identity, "")
	}
}

// completeLogin records the user, opens a session and sets the session cookie
func (h *AuthHandlers) completeLogin(c *gin.Context, identity *auth.Identity, redirectURI string) {
	ctx := c.Request.Context()

	if _, err := h.users.UpsertFromSSO(ctx, &models.User{
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		SSOProvider: identity.Provider,
	}); err != nil {
		slog.Error("failed to record user", "username", identity.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record user"})
		return
	}

	ttl := h.sessionTTL()
	sess := &auth.Session{ID: uuid.NewString(), Identity: *identity}
	if err := h.sessions.Create(ctx, sess.ID, ttl); err != nil {
		slog.Error("failed to create session", "username", identity.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	token, err := auth.IssueSessionToken(sess, ttl)
	if err != nil {
		slog.Error("failed to issue session token", "username", identity.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.Session.CookieName, token, int(ttl.Seconds()), "/", "", h.cfg.Auth.Session.SecureCookie, true)

	slog.Info("user logged in", "username", identity.Username, "provider", identity.Provider, "groups", len(identity.Groups))
	c.Redirect(http.StatusFound, h.loginTarget(redirectURI))
}

func (h *AuthHandlers) sessionTTL() time.Duration {
	if h.cfg.Auth.Session.TTL > 0 {
		return h.cfg.Auth.Session.TTL
	}
	return 8 * time.Hour
}

// loginTarget only follows relative redirects so a crafted RelayState cannot leave the site
func (h *AuthHandlers) loginTarget(redirectURI string) string {
	if isRelativePath(redirectURI) {
		return redirectURI
	}
	if h.cfg.Auth.LoginRedirect != "" {
		return h.cfg.Auth.LoginRedirect
	}
	return "/"
}

// isRelativePath accepts "/path" style targets only. Browsers treat a backslash like a slash,
// so a target starting with "/\" leaves the site just like "//host".
func isRelativePath(target string) bool {
	if len(target) < 1 || target[0] != '/' || strings.Contains(target, "\\") {
		return false
	}
	if len(target) > 1 && target[1] == '/' {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// @Summary      Logout
// @Description  Ends the dashboard session. With OIDC the browser is sent to the provider's end_session_endpoint when one is advertised.
// @Tags         Authentication
// @Success      302  {object}  string
// @Router       /auth/logout [post]
// LogoutHandler ends the current session
// POST /auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieName := h.cfg.Auth.Session.CookieName
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			if sess, err := auth.ParseSessionToken(token); err == nil {
				if err := h.sessions.Delete(c.Request.Context(), sess.ID); err != nil {
					slog.Warn("failed to delete session", "error", err)
				}
			}
		}
		c.SetCookie(cookieName, "", -1, "/", "", h.cfg.Auth.Session.SecureCookie, true)

		postLogout := h.loginTarget("")
		if h.oidc != nil {
			if endSession := h.oidc.GetEndSessionEndpoint(); endSession != "" {
				if logoutURL, err := url.Parse(endSession); err == nil {
					q := logoutURL.Query()
					q.Set("client_id", h.cfg.Auth.OIDC.ClientID)
					if base := h.cfg.Server.GetPublicURL(); base != "" {
						q.Set("post_logout_redirect_uri", strings.TrimRight(base, "/")+"/")
					}
					logoutURL.RawQuery = q.Encode()
					c.Redirect(http.StatusFound, logoutURL.String())
					return
				}
			}
		}
		c.Redirect(http.StatusFound, postLogout)
	}
}

// @Summary      Current user
// @Tags         Authentication
// @Security     Session
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user: auth.Identity, role: string"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /auth/me [get]
// MeHandler returns the authenticated identity and resolved role
// GET /auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := middleware.GetSession(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user": gin.H{
				"username":     sess.Identity.Username,
				"display_name": sess.Identity.Name(),
				"email":        sess.Identity.Email,
				"groups":       sess.Identity.Groups,
				"provider":     sess.Identity.Provider,
			},
			"role": middleware.GetRole(c).String(),
		})
	}
}
