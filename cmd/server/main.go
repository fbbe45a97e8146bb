// @title           QA Dashboard API
// @version         0.1.0
// @description     Review and approval of draft QA reports, recipient lookup and access auditing
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Session
// @in                          cookie
// @name                        qad_session
// @description                 Session token issued by /auth/login. Also accepted as 'Bearer {token}'.
//
// @tag.name         System
// @tag.description  Health, readiness and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated port (default: 9090) at GET /metrics, separate from the API listener. pprof, when enabled, is served on telemetry.profiling.port.

// Package main is the entry point for the QA dashboard server binary.
// It dispatches four subcommands (serve, migrate, check-db and version) via a switch on
// os.Args so the binary's full CLI surface is readable in one place. The serve command
// runs migrations on startup so freshly deployed containers need no separate step.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- pprof is only served on the dedicated profiling port
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/qa-dashboard/qa-dashboard/internal/api"
	"github.com/qa-dashboard/qa-dashboard/internal/audit"
	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/auth/oidc"
	"github.com/qa-dashboard/qa-dashboard/internal/auth/saml"
	"github.com/qa-dashboard/qa-dashboard/internal/auth/session"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/db"
	"github.com/qa-dashboard/qa-dashboard/internal/db/repositories"
	"github.com/qa-dashboard/qa-dashboard/internal/directory"
	"github.com/qa-dashboard/qa-dashboard/internal/storage"
	"github.com/qa-dashboard/qa-dashboard/internal/telemetry"

	// Import storage backends to register them
	_ "github.com/qa-dashboard/qa-dashboard/internal/storage/azure"
	_ "github.com/qa-dashboard/qa-dashboard/internal/storage/gcs"
	_ "github.com/qa-dashboard/qa-dashboard/internal/storage/local"
	_ "github.com/qa-dashboard/qa-dashboard/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	// A missing .env file is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command == "version" {
		fmt.Printf("QA Dashboard v%s\n", api.Version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down|force VERSION>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2:])
	case "check-db":
		return checkDB(cfg)
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, check-db, version", command)
	}
}

func serve(cfg *config.Config) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Fails outside dev mode when QAD_SESSION_SECRET is unset or weak
	if err := auth.ValidateSessionSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	telemetry.StartDBStatsCollector(ctx, database.DB)

	if err := db.RunMigrations(database.DB, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, dirty, err := db.GetMigrationVersion(database.DB); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", version, "dirty", dirty)
	}

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.Backend)

	dir, err := directory.New(ctx, &cfg.Directory, rdb, cfg.Redis.KeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to initialize directory: %w", err)
	}
	slog.Info("initialized directory", "backend", cfg.Directory.Backend, "cache", cfg.Directory.Cache.Enabled)

	var sessions session.Store = session.NewMemoryStore()
	if rdb != nil {
		sessions = session.NewRedisStore(rdb, cfg.Redis.KeyPrefix)
	}

	shippers, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		return fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	defer shippers.Close()
	var shipper audit.Shipper
	if shippers.Len() > 0 {
		shipper = shippers
	}
	recorder := audit.NewRecorder(repositories.NewAccessLogRepository(database), shipper)

	svc := api.Services{
		Storage:   storageBackend,
		Directory: dir,
		Sessions:  sessions,
		Redis:     rdb,
		Recorder:  recorder,
	}
	switch cfg.Auth.Provider {
	case "saml":
		sp, err := saml.New(ctx, &cfg.Auth.SAML, cfg.Server.GetPublicURL())
		if err != nil {
			return fmt.Errorf("failed to initialize SAML: %w", err)
		}
		svc.SAML = sp
	case "oidc":
		op, err := oidc.NewOIDCProviderWithContext(ctx, &cfg.Auth.OIDC)
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC: %w", err)
		}
		svc.OIDC = op
	default:
		slog.Warn("no SSO provider configured; interactive login is disabled", "provider", cfg.Auth.Provider)
	}

	startSideServers(cfg)

	router, bgServices := api.NewRouter(cfg, database, svc)

	server := &http.Server{
		Addr:              cfg.Server.GetAddress(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"public_url", cfg.Server.GetPublicURL(),
			"tls", cfg.Security.TLS.Enabled)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop the rate limiter and flush pending access log writes
	bgServices.Shutdown(shutdownCtx)

	slog.Info("server stopped gracefully")
	return nil
}

// startSideServers starts the metrics and profiling listeners on their own ports so they are
// not reachable through the public API ingress.
func startSideServers(cfg *config.Config) {
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	if cfg.Telemetry.Profiling.Enabled {
		pprofAddr := fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port)
		go func() {
			slog.Info("starting pprof server", "addr", pprofAddr)
			srv := &http.Server{ // #nosec G112 -- internal-only pprof port
				Addr:         pprofAddr,
				Handler:      http.DefaultServeMux,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("pprof server error", "error", err)
			}
		}()
	}
}

func runMigrations(cfg *config.Config, args []string) error {
	database, err := db.Connect(context.Background(), &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch args[0] {
	case "force":
		// Clears a dirty schema_migrations row left by an interrupted migration
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate force VERSION")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid migration version %q: %w", args[1], err)
		}
		if err := db.ForceMigrationVersion(database.DB, version); err != nil {
			return err
		}
	default:
		log.Printf("Running migrations: %s", args[0])
		if err := db.RunMigrations(database.DB, args[0]); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", version, dirty)
	return nil
}

// checkDB verifies connectivity and prints a summary of the review queue. It exits non-zero on
// any failure so it can gate deployments.
func checkDB(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		return fmt.Errorf("schema is dirty; run 'migrate force %d' after fixing the failed migration", version)
	}

	_, pending, err := repositories.NewDraftRepository(database).ListPending(ctx, 1, 0)
	if err != nil {
		return err
	}
	_, finals, err := repositories.NewFinalReportRepository(database).List(ctx, 1, 0)
	if err != nil {
		return err
	}
	fmt.Printf("Pending drafts: %d\nFinal reports: %d\n", pending, finals)
	return nil
}
