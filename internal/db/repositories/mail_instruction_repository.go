// mail_instruction_repository.go implements MailInstructionRepository, the read side of the
// per-draft notification snapshot.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
)

// MailInstructionRepository handles mail instruction database operations
type MailInstructionRepository struct {
	db *sqlx.DB
}

// NewMailInstructionRepository creates a new MailInstructionRepository
func NewMailInstructionRepository(db *sqlx.DB) *MailInstructionRepository {
	return &MailInstructionRepository{db: db}
}

// ListByDraft returns the mail instructions recorded for a draft in insertion order
func (r *MailInstructionRepository) ListByDraft(ctx context.Context, draftID int64) ([]*models.MailInstruction, error) {
	instructions := make([]*models.MailInstruction, 0)
	query := `
		SELECT id, draft_id, recipient, source_type, added_by, added_on
		FROM mail_instructions
		WHERE draft_id = $1
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &instructions, query, draftID); err != nil {
		return nil, fmt.Errorf("failed to list mail instructions for draft %d: %w", draftID, err)
	}
	return instructions, nil
}
