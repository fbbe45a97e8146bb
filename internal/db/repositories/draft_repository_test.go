package repositories

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var draftCols = []string{
	"id", "filename", "region", "site", "study_id", "batch", "product",
	"start_date", "end_date", "locked", "created_on",
}

func sampleDraftRow(id int64, locked bool) []driver.Value {
	return []driver.Value{id, "report-1.pdf", "R1", "S1", "ST-1", nil, nil, nil, nil, locked, time.Now()}
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestDraftGetByID_Found(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDraftRepository(db)
	mock.ExpectQuery("SELECT .* FROM drafts WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(draftCols).AddRow(sampleDraftRow(7, false)...))

	draft, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft == nil {
		t.Fatal("expected draft, got nil")
	}
	if draft.ID != 7 || draft.Site != "S1" || draft.Region != "R1" {
		t.Errorf("draft = %+v", draft)
	}
	if draft.StudyID == nil || *draft.StudyID != "ST-1" {
		t.Errorf("StudyID = %v, want ST-1", draft.StudyID)
	}
	if draft.Batch != nil {
		t.Errorf("Batch = %v, want nil", draft.Batch)
	}
}

func TestDraftGetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDraftRepository(db)
	mock.ExpectQuery("SELECT .* FROM drafts WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(draftCols))

	draft, err := repo.GetByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft != nil {
		t.Errorf("expected nil draft, got %+v", draft)
	}
}

func TestDraftGetByID_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDraftRepository(db)
	mock.ExpectQuery("SELECT .* FROM drafts WHERE id").WillReturnError(errDB)

	if _, err := repo.GetByID(context.Background(), 1); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListPending
// ---------------------------------------------------------------------------

func TestDraftListPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDraftRepository(db)
	mock.ExpectQuery("SELECT COUNT.*FROM drafts WHERE locked = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	mock.ExpectQuery("SELECT .* FROM drafts.*ORDER BY created_on DESC").
		WithArgs(25, 25).
		WillReturnRows(sqlmock.NewRows(draftCols).
			AddRow(sampleDraftRow(5, false)...).
			AddRow(sampleDraftRow(4, false)...))

	drafts, total, err := repo.ListPending(context.Background(), 25, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 30 {
		t.Errorf("total = %d, want 30", total)
	}
	if len(drafts) != 2 || drafts[0].ID != 5 {
		t.Errorf("drafts = %+v", drafts)
	}
}

func TestDraftListPending_CountError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDraftRepository(db)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errDB)

	if _, _, err := repo.ListPending(context.Background(), 25, 0); err == nil {
		t.Error("expected error, got nil")
	}
}
