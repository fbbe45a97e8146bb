// access_log_repository.go implements AccessLogRepository, writing and querying the append-only
// access log. Entries are never updated or deleted.
package repositories

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
)

// AccessLogRepository handles access log database operations
type AccessLogRepository struct {
	db *sqlx.DB
}

// NewAccessLogRepository creates a new AccessLogRepository
func NewAccessLogRepository(db *sqlx.DB) *AccessLogRepository {
	return &AccessLogRepository{db: db}
}

// AccessLogFilters contains filters for querying access logs
type AccessLogFilters struct {
	UserID    *string
	Action    *string
	Subject   *string
	StartDate *time.Time
	EndDate   *time.Time
}

// Create writes a new access log entry, assigning its ID and timestamp when unset
func (r *AccessLogRepository) Create(ctx context.Context, log *models.AccessLog) error {
	return insertAccessLog(ctx, r.db, log)
}

func insertAccessLog(ctx context.Context, exec sqlx.ExecerContext, log *models.AccessLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	query := `
		INSERT INTO access_logs (id, timestamp, user_id, role, action, subject, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := exec.ExecContext(ctx, query,
		log.ID,
		log.Timestamp,
		log.UserID,
		log.Role,
		log.Action,
		log.Subject,
		inetOrNil(log.IPAddress),
	)
	if err != nil {
		return fmt.Errorf("failed to insert access log: %w", err)
	}
	return nil
}

// inetOrNil keeps only values the INET column accepts
func inetOrNil(ip *string) interface{} {
	if ip == nil || net.ParseIP(*ip) == nil {
		return nil
	}
	return *ip
}

// List retrieves access logs with optional filters and pagination, newest first
func (r *AccessLogRepository) List(ctx context.Context, filters AccessLogFilters, limit, offset int) ([]*models.AccessLog, int, error) {
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)
	paramIndex := 1

	addFilter := func(clause string, value interface{}) {
		where += fmt.Sprintf(clause, paramIndex)
		args = append(args, value)
		paramIndex++
	}

	if filters.UserID != nil {
		addFilter(` AND user_id = $%d`, *filters.UserID)
	}
	if filters.Action != nil {
		addFilter(` AND action = $%d`, *filters.Action)
	}
	if filters.Subject != nil {
		addFilter(` AND subject = $%d`, *filters.Subject)
	}
	if filters.StartDate != nil {
		addFilter(` AND timestamp >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		addFilter(` AND timestamp <= $%d`, *filters.EndDate)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM access_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count access logs: %w", err)
	}

	query := `SELECT id, timestamp, user_id, role, action, subject, host(ip_address) AS ip_address FROM access_logs` +
		where + fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	logs := make([]*models.AccessLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list access logs: %w", err)
	}
	return logs, total, nil
}
