// draft_repository.go implements DraftRepository, providing read access to drafts awaiting QA
// review. Drafts are written by the upload pipeline; the lock flag is only changed inside
// ApprovalRepository.CommitApproval.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
)

const draftColumns = `id, filename, region, site, study_id, batch, product, start_date, end_date, locked, created_on`

// DraftRepository handles draft database operations
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository creates a new DraftRepository
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// GetByID returns the draft with the given ID, or nil when it does not exist
func (r *DraftRepository) GetByID(ctx context.Context, id int64) (*models.Draft, error) {
	var draft models.Draft
	err := r.db.GetContext(ctx, &draft, `SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft %d: %w", id, err)
	}
	return &draft, nil
}

// ListPending returns unlocked drafts, newest first, plus the total number of unlocked drafts
func (r *DraftRepository) ListPending(ctx context.Context, limit, offset int) ([]*models.Draft, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM drafts WHERE locked = FALSE`); err != nil {
		return nil, 0, fmt.Errorf("failed to count pending drafts: %w", err)
	}

	drafts := make([]*models.Draft, 0)
	query := `SELECT ` + draftColumns + ` FROM drafts
		WHERE locked = FALSE
		ORDER BY created_on DESC, id DESC
		LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &drafts, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list pending drafts: %w", err)
	}
	return drafts, total, nil
}
