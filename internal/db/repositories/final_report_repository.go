// final_report_repository.go implements FinalReportRepository and ProcessLogRepository, the
// read-mostly views over reports published by the generation pipeline.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
)

const finalReportColumns = `id, filename, region, site, study_id, batch, product, passed, approved_by, approved_on, start_date, end_date`

// FinalReportRepository handles final report database operations
type FinalReportRepository struct {
	db *sqlx.DB
}

// NewFinalReportRepository creates a new FinalReportRepository
func NewFinalReportRepository(db *sqlx.DB) *FinalReportRepository {
	return &FinalReportRepository{db: db}
}

// List returns final reports, most recently approved first
func (r *FinalReportRepository) List(ctx context.Context, limit, offset int) ([]*models.FinalReport, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM final_reports`); err != nil {
		return nil, 0, fmt.Errorf("failed to count final reports: %w", err)
	}

	reports := make([]*models.FinalReport, 0)
	query := `SELECT ` + finalReportColumns + ` FROM final_reports ORDER BY approved_on DESC, id DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &reports, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list final reports: %w", err)
	}
	return reports, total, nil
}

// GetByID returns one final report, or nil when it does not exist
func (r *FinalReportRepository) GetByID(ctx context.Context, id int64) (*models.FinalReport, error) {
	var report models.FinalReport
	err := r.db.GetContext(ctx, &report, `SELECT `+finalReportColumns+` FROM final_reports WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get final report %d: %w", id, err)
	}
	return &report, nil
}

// ProcessLogRepository handles process log database operations
type ProcessLogRepository struct {
	db *sqlx.DB
}

// NewProcessLogRepository creates a new ProcessLogRepository
func NewProcessLogRepository(db *sqlx.DB) *ProcessLogRepository {
	return &ProcessLogRepository{db: db}
}

// ProcessLogFilters narrows a process log listing
type ProcessLogFilters struct {
	Study *string
	State *string
}

// List returns process log entries, newest first
func (r *ProcessLogRepository) List(ctx context.Context, filters ProcessLogFilters, limit, offset int) ([]*models.ProcessLog, int, error) {
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.Study != nil {
		where += fmt.Sprintf(` AND study = $%d`, paramIndex)
		args = append(args, *filters.Study)
		paramIndex++
	}
	if filters.State != nil {
		where += fmt.Sprintf(` AND state = $%d`, paramIndex)
		args = append(args, *filters.State)
		paramIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM process_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count process logs: %w", err)
	}

	query := `SELECT id, timestamp, study, region, site, product, state, text FROM process_logs` +
		where + fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	logs := make([]*models.ProcessLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list process logs: %w", err)
	}
	return logs, total, nil
}
