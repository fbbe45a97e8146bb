// logs.go implements the admin endpoints for browsing the access log and the report pipeline's
// process log.
package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/qa-dashboard/internal/api/respond"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/db/repositories"
	"github.com/qa-dashboard/qa-dashboard/internal/services"
)

// AccessLogLister reads the access log
type AccessLogLister interface {
	List(ctx context.Context, filters repositories.AccessLogFilters, limit, offset int) ([]*models.AccessLog, int, error)
}

// ProcessLogLister reads the process log
type ProcessLogLister interface {
	List(ctx context.Context, filters repositories.ProcessLogFilters, limit, offset int) ([]*models.ProcessLog, int, error)
}

// LogHandlers serves the admin log endpoints
type LogHandlers struct {
	cfg         *config.Config
	accessLogs  AccessLogLister
	processLogs ProcessLogLister
}

// NewLogHandlers creates a new LogHandlers instance
func NewLogHandlers(cfg *config.Config, accessLogs AccessLogLister, processLogs ProcessLogLister) *LogHandlers {
	return &LogHandlers{cfg: cfg, accessLogs: accessLogs, processLogs: processLogs}
}

func optionalQuery(c *gin.Context, key string) *string {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil
	}
	return &v
}

// optionalTime accepts RFC 3339 timestamps or plain dates
func optionalTime(c *gin.Context, key string) (*time.Time, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, &services.ValidationError{Field: key, Message: "must be a date (2006-01-02) or RFC 3339 timestamp"}
}

// @Summary      List access logs
// @Description  Paginated audit trail, newest first. Requires the admin role.
// @Tags         Admin
// @Security     Session
// @Produce      json
// @Param        user_id     query  string  false  "Filter by user"
// @Param        action      query  string  false  "Filter by action (View, Approved)"
// @Param        subject     query  string  false  "Filter by subject"
// @Param        start_date  query  string  false  "Entries at or after this time"
// @Param        end_date    query  string  false  "Entries at or before this time"
// @Param        page        query  int     false  "Page number (default 1)"
// @Param        per_page    query  int     false  "Items per page"
// @Success      200  {object}  map[string]interface{}  "access_logs: []models.AccessLog, pagination: map"
// @Failure      400  {object}  map[string]interface{}  "Invalid filter"
// @Router       /api/v1/admin/access-logs [get]
// ListAccessLogsHandler lists access log entries
// GET /api/v1/admin/access-logs
func (h *LogHandlers) ListAccessLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start, err := optionalTime(c, "start_date")
		if err != nil {
			respond.Error(c, err, "")
			return
		}
		end, err := optionalTime(c, "end_date")
		if err != nil {
			respond.Error(c, err, "")
			return
		}
		page := respond.ParsePage(c, h.cfg.Review.DefaultPageSize, h.cfg.Review.MaxPageSize)

		logs, total, err := h.accessLogs.List(c.Request.Context(), repositories.AccessLogFilters{
			UserID:    optionalQuery(c, "user_id"),
			Action:    optionalQuery(c, "action"),
			Subject:   optionalQuery(c, "subject"),
			StartDate: start,
			EndDate:   end,
		}, page.PerPage, page.Offset())
		if err != nil {
			respond.Error(c, err, "failed to list access logs")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_logs": logs,
			"pagination":  page.JSON(total),
		})
	}
}

// @Summary      List process logs
// @Description  Report pipeline progress messages, newest first. Requires the admin role.
// @Tags         Admin
// @Security     Session
// @Produce      json
// @Param        study     query  string  false  "Filter by study"
// @Param        state     query  string  false  "Filter by state"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Items per page"
// @Success      200  {object}  map[string]interface{}  "process_logs: []models.ProcessLog, pagination: map"
// @Router       /api/v1/admin/process-logs [get]
// ListProcessLogsHandler lists process log entries
// GET /api/v1/admin/process-logs
func (h *LogHandlers) ListProcessLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := respond.ParsePage(c, h.cfg.Review.DefaultPageSize, h.cfg.Review.MaxPageSize)

		logs, total, err := h.processLogs.List(c.Request.Context(), repositories.ProcessLogFilters{
			Study: optionalQuery(c, "study"),
			State: optionalQuery(c, "state"),
		}, page.PerPage, page.Offset())
		if err != nil {
			respond.Error(c, err, "failed to list process logs")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"process_logs": logs,
			"pagination":   page.JSON(total),
		})
	}
}
