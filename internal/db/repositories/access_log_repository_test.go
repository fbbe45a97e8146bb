package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
)

var accessLogCols = []string{"id", "timestamp", "user_id", "role", "action", "subject", "ip_address"}

func TestAccessLogCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccessLogRepository(db)
	mock.ExpectExec("INSERT INTO access_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "alice", "admin", "View", "drafts:list", "192.0.2.4").
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := &models.AccessLog{
		UserID:    "alice",
		Role:      "admin",
		Action:    models.AccessActionView,
		Subject:   "drafts:list",
		IPAddress: strPtr("192.0.2.4"),
	}
	if err := repo.Create(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.ID == "" || log.Timestamp.IsZero() {
		t.Errorf("expected ID and timestamp to be set, got %+v", log)
	}
}

func TestAccessLogCreate_InvalidIPStoredAsNull(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccessLogRepository(db)
	mock.ExpectExec("INSERT INTO access_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "alice", "admin", "View", "draft:1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := &models.AccessLog{
		UserID:    "alice",
		Role:      "admin",
		Action:    models.AccessActionView,
		Subject:   "draft:1",
		IPAddress: strPtr("unknown"),
	}
	if err := repo.Create(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccessLogCreate_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccessLogRepository(db)
	mock.ExpectExec("INSERT INTO access_logs").WillReturnError(errDB)

	if err := repo.Create(context.Background(), &models.AccessLog{UserID: "alice"}); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestAccessLogList_WithFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccessLogRepository(db)
	start := time.Now().Add(-time.Hour)

	mock.ExpectQuery("SELECT COUNT.*FROM access_logs WHERE 1=1 AND user_id = \\$1 AND action = \\$2 AND timestamp >= \\$3").
		WithArgs("alice", "View", start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, timestamp.*FROM access_logs.*LIMIT \\$4 OFFSET \\$5").
		WithArgs("alice", "View", start, 50, 0).
		WillReturnRows(sqlmock.NewRows(accessLogCols).
			AddRow("log-1", time.Now(), "alice", "admin", "View", "drafts:list", "192.0.2.4"))

	logs, total, err := repo.List(context.Background(), AccessLogFilters{
		UserID:    strPtr("alice"),
		Action:    strPtr("View"),
		StartDate: &start,
	}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("total=%d len=%d, want 1/1", total, len(logs))
	}
	if logs[0].IPAddress == nil || *logs[0].IPAddress != "192.0.2.4" {
		t.Errorf("IPAddress = %v", logs[0].IPAddress)
	}
}
