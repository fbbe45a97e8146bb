// Package api wires together all HTTP routes for the QA dashboard backend.
//
// Route grouping:
//   - /health, /ready and /version are public probes.
//   - /auth/* drives SSO login; only /auth/me requires a session.
//   - /api/v1/* always requires a session, is rate limited, and each route checks the
//     resolved dashboard role.
//   - /files/* streams documents when the local storage backend is in use, since the
//     browser cannot fetch those from a signed URL.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/qa-dashboard/qa-dashboard/internal/api/admin"
	"github.com/qa-dashboard/qa-dashboard/internal/api/qa"
	"github.com/qa-dashboard/qa-dashboard/internal/audit"
	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/auth/session"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/db/repositories"
	"github.com/qa-dashboard/qa-dashboard/internal/directory"
	"github.com/qa-dashboard/qa-dashboard/internal/documents"
	"github.com/qa-dashboard/qa-dashboard/internal/middleware"
	"github.com/qa-dashboard/qa-dashboard/internal/services"
	"github.com/qa-dashboard/qa-dashboard/internal/storage"
)

// Version is the server version reported by /version
var Version = "0.1.0"

// Services are the long-lived collaborators built by cmd/server and shared by the handlers.
// Storage, Redis, SAML and OIDC may be nil when not configured.
type Services struct {
	Storage   storage.Storage
	Directory directory.Directory
	Sessions  session.Store
	Redis     redis.UniversalClient
	Recorder  *audit.Recorder
	SAML      admin.SAMLProvider
	OIDC      admin.OIDCProvider
}

// BackgroundServices holds references to background work that must be stopped during
// graceful shutdown. The caller (cmd/server) is responsible for calling Shutdown() when
// the process receives a termination signal.
type BackgroundServices struct {
	rateLimiter *middleware.RateLimiter
	recorder    *audit.Recorder
}

// Shutdown stops background goroutines and waits for pending audit writes. It should be
// called after the HTTP server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown(ctx context.Context) {
	slog.Info("stopping background services")
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	if bg.recorder != nil {
		if err := bg.recorder.Wait(ctx); err != nil {
			slog.Warn("pending audit writes abandoned", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sqlx.DB, svc Services) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{}

	// Initialize repositories
	draftRepo := repositories.NewDraftRepository(db)
	approvalRepo := repositories.NewApprovalRepository(db)
	mailRepo := repositories.NewMailInstructionRepository(db)
	accessLogRepo := repositories.NewAccessLogRepository(db)
	userRepo := repositories.NewUserRepository(db)
	finalRepo := repositories.NewFinalReportRepository(db)
	processLogRepo := repositories.NewProcessLogRepository(db)

	recorder := svc.Recorder
	if recorder == nil {
		recorder = audit.NewRecorder(accessLogRepo, nil)
	}
	bg.recorder = recorder

	engine := services.NewEngine(draftRepo, approvalRepo, svc.Directory)
	docs := documents.New(&cfg.Documents, cfg.Server.StaticURL, svc.Storage)
	resolver := auth.NewRoleResolver(svc.Sessions, auth.NewRoleMapping(cfg.Auth.Roles))

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware(slog.Default()))
	router.Use(middleware.CORSMiddleware(&cfg.Security.CORS))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, svc.Storage))
	router.GET("/version", versionHandler())

	sessionAuth := middleware.SessionAuthMiddleware(cfg.Auth.Session.CookieName, svc.Sessions, resolver)

	// SSO
	authHandlers := admin.NewAuthHandlers(cfg, svc.Sessions, userRepo, svc.SAML, svc.OIDC)
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/login", authHandlers.LoginHandler())
		authGroup.POST("/saml/acs", authHandlers.SAMLACSHandler())
		authGroup.GET("/saml/metadata", authHandlers.SAMLMetadataHandler())
		authGroup.GET("/oidc/callback", authHandlers.OIDCCallbackHandler())
		authGroup.POST("/logout", authHandlers.LogoutHandler())
		authGroup.GET("/logout", authHandlers.LogoutHandler())
		authGroup.GET("/me", sessionAuth, authHandlers.MeHandler())
	}

	apiMiddleware := []gin.HandlerFunc{sessionAuth}
	if cfg.Security.RateLimiting.Enabled {
		rlCfg := middleware.RateLimitConfigFrom(&cfg.Security.RateLimiting)
		var limiter middleware.Limiter
		if svc.Redis != nil {
			limiter = middleware.NewRedisRateLimiter(svc.Redis, rlCfg, cfg.Redis.KeyPrefix)
		} else {
			rl := middleware.NewRateLimiter(rlCfg)
			bg.rateLimiter = rl
			limiter = rl
		}
		apiMiddleware = append(apiMiddleware, middleware.RateLimitMiddleware(limiter))
	}

	reviewers := middleware.RequireRole(auth.RoleAdmin, auth.RoleApprover)
	anyRole := middleware.RequireRole(auth.RoleAdmin, auth.RoleApprover, auth.RoleViewer)

	qaHandlers := qa.NewHandlers(cfg, qa.Deps{
		Drafts:    draftRepo,
		Approvals: approvalRepo,
		Mail:      mailRepo,
		Finals:    finalRepo,
		Engine:    engine,
		Documents: docs,
		Recorder:  recorder,
	})
	logHandlers := admin.NewLogHandlers(cfg, accessLogRepo, processLogRepo)

	v1 := router.Group("/api/v1", apiMiddleware...)
	{
		qaGroup := v1.Group("/qa")
		{
			qaGroup.GET("/drafts", reviewers, qaHandlers.ListDraftsHandler())
			qaGroup.GET("/drafts/:id", reviewers, qaHandlers.GetDraftHandler())
			qaGroup.POST("/drafts/:id/approve", middleware.RequireRole(auth.RoleApprover), qaHandlers.ApproveHandler())
			qaGroup.GET("/recipients/:site/:region", reviewers, qaHandlers.RecipientsHandler())
			qaGroup.GET("/finals", anyRole, qaHandlers.ListFinalsHandler())
			qaGroup.GET("/finals/:id", anyRole, qaHandlers.GetFinalHandler())
		}

		adminGroup := v1.Group("/admin", middleware.RequireRole(auth.RoleAdmin))
		{
			adminGroup.GET("/access-logs", logHandlers.ListAccessLogsHandler())
			adminGroup.GET("/process-logs", logHandlers.ListProcessLogsHandler())
		}
	}

	if cfg.Storage.Backend == "local" && cfg.Storage.Local.ServeDirectly {
		router.GET("/files/*path", append(apiMiddleware, anyRole, qaHandlers.ServeFileHandler())...)
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and the document storage backend.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks: map, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks: map, error: string"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also probes the storage backend so that a
// readiness gate fails when document URLs cannot be produced.
func readinessHandler(db *sqlx.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if storageBackend == nil {
			checks["storage"] = "disabled"
		} else {
			// Probe a sentinel path that never exists; Exists still needs auth and connectivity
			if _, err := storageBackend.Exists(c.Request.Context(), "readiness/.probe"); err != nil {
				checks["storage"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "storage backend not ready",
				})
				return
			}
			checks["storage"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the server version and API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}
