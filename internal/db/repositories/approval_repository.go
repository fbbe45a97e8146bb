// approval_repository.go implements ApprovalRepository. CommitApproval is the only write path
// for approvals: it locks the draft, upserts the approval, records the mail instructions and
// writes the access log entry in a single transaction.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
)

var (
	// ErrDraftLocked is returned when the draft was already locked by another approval
	ErrDraftLocked = errors.New("draft is already locked")
	// ErrDraftNotFound is returned when the draft row does not exist
	ErrDraftNotFound = errors.New("draft not found")
)

// ApprovalCommit is everything persisted by one approval decision
type ApprovalCommit struct {
	DraftID    int64
	Passed     bool
	ApprovedBy string
	ApprovedOn time.Time
	Recipients []RecipientRecord
	AccessLog  *models.AccessLog
}

// RecipientRecord is one resolved recipient to be stored as a mail instruction
type RecipientRecord struct {
	Email  string
	Source models.RecipientSource
}

// ApprovalRepository handles approval database operations
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository creates a new ApprovalRepository
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// GetByDraftID returns the approval recorded for a draft, or nil when there is none
func (r *ApprovalRepository) GetByDraftID(ctx context.Context, draftID int64) (*models.Approval, error) {
	var approval models.Approval
	query := `SELECT id, draft_id, passed, approved_by, approved_on FROM approvals WHERE draft_id = $1`
	err := r.db.GetContext(ctx, &approval, query, draftID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval for draft %d: %w", draftID, err)
	}
	return &approval, nil
}

// CommitApproval atomically records an approval decision.
// The draft lock is a compare-and-set on drafts.locked, so of two concurrent commits for the
// same draft exactly one succeeds; the other gets ErrDraftLocked and writes nothing.
func (r *ApprovalRepository) CommitApproval(ctx context.Context, c *ApprovalCommit) (*models.Approval, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin approval transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE drafts SET locked = TRUE WHERE id = $1 AND locked = FALSE`, c.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock draft %d: %w", c.DraftID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to lock draft %d: %w", c.DraftID, err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM drafts WHERE id = $1)`, c.DraftID); err != nil {
			return nil, fmt.Errorf("failed to check draft %d: %w", c.DraftID, err)
		}
		if !exists {
			return nil, ErrDraftNotFound
		}
		return nil, ErrDraftLocked
	}

	var approval models.Approval
	upsert := `
		INSERT INTO approvals (draft_id, passed, approved_by, approved_on)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (draft_id) DO UPDATE
		SET passed = EXCLUDED.passed,
		    approved_by = EXCLUDED.approved_by,
		    approved_on = EXCLUDED.approved_on
		RETURNING id, draft_id, passed, approved_by, approved_on
	`
	if err := tx.QueryRowxContext(ctx, upsert, c.DraftID, c.Passed, c.ApprovedBy, c.ApprovedOn).StructScan(&approval); err != nil {
		return nil, fmt.Errorf("failed to upsert approval for draft %d: %w", c.DraftID, err)
	}

	if err := insertMailInstructions(ctx, tx, c); err != nil {
		return nil, err
	}

	if c.AccessLog != nil {
		if err := insertAccessLog(ctx, tx, c.AccessLog); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval for draft %d: %w", c.DraftID, err)
	}
	return &approval, nil
}

// mailInsertBatchSize keeps each multi-row INSERT well under the 65535 bind parameter limit
var mailInsertBatchSize = 1000

// insertMailInstructions writes the recipients with multi-row INSERTs of at most
// mailInsertBatchSize rows each
func insertMailInstructions(ctx context.Context, tx *sqlx.Tx, c *ApprovalCommit) error {
	for start := 0; start < len(c.Recipients); start += mailInsertBatchSize {
		end := min(start+mailInsertBatchSize, len(c.Recipients))
		if err := insertMailInstructionBatch(ctx, tx, c, c.Recipients[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertMailInstructionBatch(ctx context.Context, tx *sqlx.Tx, c *ApprovalCommit, batch []RecipientRecord) error {
	const cols = 5
	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*cols)
	for i, rcpt := range batch {
		base := i * cols
		placeholders = append(placeholders,
			fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5))
		args = append(args, c.DraftID, rcpt.Email, string(rcpt.Source), c.ApprovedBy, c.ApprovedOn)
	}

	query := `INSERT INTO mail_instructions (draft_id, recipient, source_type, added_by, added_on) VALUES ` +
		strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert mail instructions for draft %d: %w", c.DraftID, err)
	}
	return nil
}
