package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/qa-dashboard/qa-dashboard/internal/audit"
	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/auth/session"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/directory"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("QAD_SESSION_SECRET", "test-router-session-secret-32chars!!")
	os.Exit(m.Run())
}

// ---------------------------------------------------------------------------
// minimal storage.Storage mock for readiness tests
// ---------------------------------------------------------------------------

type readinessMockStorage struct{ existsErr error }

func (m *readinessMockStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, nil
}
func (m *readinessMockStorage) GetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", nil
}
func (m *readinessMockStorage) Exists(_ context.Context, _ string) (bool, error) {
	return false, m.existsErr
}

// ---------------------------------------------------------------------------
// healthCheckHandler / readinessHandler / versionHandler
// ---------------------------------------------------------------------------

func newHealthDB(t *testing.T, pingOK bool) *sqlx.DB {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if pingOK {
		mock.ExpectPing()
	} else {
		mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	}
	return sqlx.NewDb(db, "postgres")
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheckHandler(t *testing.T) {
	for _, ok := range []bool{true, false} {
		r := gin.New()
		r.GET("/health", healthCheckHandler(newHealthDB(t, ok)))
		w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ok && (w.Code != http.StatusOK || body["status"] != "healthy") {
			t.Errorf("healthy db: %d %v", w.Code, body)
		}
		if !ok && (w.Code != http.StatusServiceUnavailable || body["status"] != "unhealthy") {
			t.Errorf("unhealthy db: %d %v", w.Code, body)
		}
	}
}

func TestReadinessHandler(t *testing.T) {
	cases := []struct {
		name    string
		pingOK  bool
		storage *readinessMockStorage
		code    int
		status  string
	}{
		{"storage disabled", true, nil, http.StatusOK, "disabled"},
		{"storage healthy", true, &readinessMockStorage{}, http.StatusOK, "healthy"},
		{"storage failing", true, &readinessMockStorage{existsErr: errors.New("403")}, http.StatusServiceUnavailable, "unhealthy"},
		{"database down", false, &readinessMockStorage{}, http.StatusServiceUnavailable, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			if tc.storage == nil {
				r.GET("/ready", readinessHandler(newHealthDB(t, tc.pingOK), nil))
			} else {
				r.GET("/ready", readinessHandler(newHealthDB(t, tc.pingOK), tc.storage))
			}
			w := serve(r, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if w.Code != tc.code {
				t.Fatalf("status = %d, want %d", w.Code, tc.code)
			}
			var body struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Checks["storage"] != tc.status {
				t.Errorf("storage check = %q, want %q", body.Checks["storage"], tc.status)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	r := gin.New()
	r.GET("/version", versionHandler())
	w := serve(r, httptest.NewRequest(http.MethodGet, "/version", nil))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["version"] != Version || body["api_version"] != "v1" {
		t.Errorf("unexpected body: %v", body)
	}
}

// ---------------------------------------------------------------------------
// NewRouter
// ---------------------------------------------------------------------------

type memoryAuditStore struct {
	mu      sync.Mutex
	entries []*models.AccessLog
}

func (s *memoryAuditStore) Create(_ context.Context, e *models.AccessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

type routerEnv struct {
	mock     sqlmock.Sqlmock
	router   *gin.Engine
	bg       *BackgroundServices
	sessions session.Store
	audit    *memoryAuditStore
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Auth.Session.CookieName = "qad_session"
	cfg.Auth.Roles = config.RolesConfig{
		AdminGroups:    []string{"QA Admin"},
		ApproverGroups: []string{"QA Approver"},
		ViewerGroups:   []string{"Viewer"},
	}
	cfg.Review.DefaultPageSize = 25
	cfg.Review.MaxPageSize = 100
	cfg.Security.RateLimiting.Enabled = true
	cfg.Security.RateLimiting.RequestsPerMinute = 600
	cfg.Security.RateLimiting.Burst = 100

	dir, err := directory.NewStatic(&config.StaticDirectoryConfig{
		SiteMembers: map[string][]string{"S1": {"a@x.com"}},
	})
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}

	env := &routerEnv{mock: mock, sessions: session.NewMemoryStore(), audit: &memoryAuditStore{}}
	env.router, env.bg = NewRouter(cfg, sqlx.NewDb(db, "postgres"), Services{
		Directory: dir,
		Sessions:  env.sessions,
		Recorder:  audit.NewRecorder(env.audit, nil),
	})
	t.Cleanup(func() { env.bg.Shutdown(context.Background()) })
	return env
}

func (e *routerEnv) login(t *testing.T, username string, groups ...string) *http.Cookie {
	t.Helper()
	sess := &auth.Session{ID: "sid-" + username, Identity: auth.Identity{Username: username, Groups: groups}}
	if err := e.sessions.Create(context.Background(), sess.ID, time.Hour); err != nil {
		t.Fatal(err)
	}
	token, err := auth.IssueSessionToken(sess, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Cookie{Name: "qad_session", Value: token}
}

func (e *routerEnv) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return serve(e.router, req)
}

func TestRouter_RequiresSession(t *testing.T) {
	env := newRouterEnv(t)

	for _, path := range []string{"/api/v1/qa/drafts", "/api/v1/admin/access-logs", "/auth/me"} {
		if w := env.get(path, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, w.Code)
		}
	}
}

func TestRouter_RoleChecks(t *testing.T) {
	env := newRouterEnv(t)
	viewer := env.login(t, "vera", "Viewer")
	approver := env.login(t, "alex", "QA Approver")

	if w := env.get("/api/v1/qa/drafts", viewer); w.Code != http.StatusForbidden {
		t.Errorf("viewer drafts status = %d, want 403", w.Code)
	}
	if w := env.get("/api/v1/admin/process-logs", approver); w.Code != http.StatusForbidden {
		t.Errorf("approver admin status = %d, want 403", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/qa/drafts/1/approve", nil)
	req.AddCookie(viewer)
	if w := serve(env.router, req); w.Code != http.StatusForbidden {
		t.Errorf("viewer approve status = %d, want 403", w.Code)
	}
}

func TestRouter_ListDraftsAsApprover(t *testing.T) {
	env := newRouterEnv(t)
	approver := env.login(t, "alex", "QA Approver")

	env.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM drafts WHERE locked = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	env.mock.ExpectQuery("SELECT .* FROM drafts").
		WithArgs(25, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "filename", "region", "site", "study_id", "batch", "product",
			"start_date", "end_date", "locked", "created_on",
		}).AddRow(1, "d1.pdf", "R1", "S1", nil, nil, nil, nil, nil, false, time.Now()))

	w := env.get("/api/v1/qa/drafts", approver)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("rate limit headers missing")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("request ID header missing")
	}

	env.bg.Shutdown(context.Background())
	env.audit.mu.Lock()
	defer env.audit.mu.Unlock()
	if len(env.audit.entries) != 1 || env.audit.entries[0].Subject != "drafts:list" || env.audit.entries[0].Role != "approver" {
		t.Errorf("unexpected audit entries: %+v", env.audit.entries)
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRouter_RecipientPreview(t *testing.T) {
	env := newRouterEnv(t)
	admin := env.login(t, "root", "QA Admin")

	w := env.get("/api/v1/qa/recipients/S1/R9", admin)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Recipients []string `json:"recipients"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Recipients) != 1 || body.Recipients[0] != "a@x.com" {
		t.Errorf("recipients = %v, want [a@x.com]", body.Recipients)
	}
}

func TestRouter_FilesRouteOnlyForLocalStorage(t *testing.T) {
	env := newRouterEnv(t)
	viewer := env.login(t, "vera", "Viewer")

	if w := env.get("/files/finals/f1.pdf", viewer); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when local storage is not configured", w.Code)
	}
}
