package audit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/safego"
	"github.com/qa-dashboard/qa-dashboard/internal/telemetry"
)

const defaultWriteTimeout = 5 * time.Second

// Store persists access log entries
type Store interface {
	Create(ctx context.Context, entry *models.AccessLog) error
}

// Recorder writes access log entries in the background. Failures are logged and counted,
// never returned to the request that produced the entry.
type Recorder struct {
	store   Store
	shipper Shipper
	timeout time.Duration
	tasks   safego.Tracker
}

// NewRecorder creates a Recorder. shipper may be nil.
func NewRecorder(store Store, shipper Shipper) *Recorder {
	return &Recorder{store: store, shipper: shipper, timeout: defaultWriteTimeout}
}

// NewEntry builds an access log entry stamped with the current time
func NewEntry(userID, role, action, subject, originIP string) *models.AccessLog {
	entry := &models.AccessLog{
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Role:      role,
		Action:    action,
		Subject:   subject,
	}
	if originIP != "" {
		entry.IPAddress = &originIP
	}
	return entry
}

// Record stores entry in the database and forwards it to the shippers
func (r *Recorder) Record(entry *models.AccessLog) {
	r.tasks.Go(r.timeout, func(ctx context.Context) {
		err := r.store.Create(ctx, entry)
		telemetry.AuditWritesTotal.WithLabelValues(telemetry.ResultLabel(err)).Inc()
		if err != nil {
			slog.Error("failed to write access log", "action", entry.Action, "subject", entry.Subject, "error", err)
			return
		}
		r.ship(ctx, entry)
	})
}

// Ship forwards an entry that was already persisted elsewhere, such as inside the
// approval transaction
func (r *Recorder) Ship(entry *models.AccessLog) {
	if r.shipper == nil {
		return
	}
	r.tasks.Go(r.timeout, func(ctx context.Context) {
		r.ship(ctx, entry)
	})
}

func (r *Recorder) ship(ctx context.Context, entry *models.AccessLog) {
	if r.shipper == nil {
		return
	}
	if err := r.shipper.Ship(ctx, entry); err != nil {
		slog.Warn("failed to ship access log", "action", entry.Action, "error", err)
	}
}

// Wait blocks until pending writes finish or ctx is done
func (r *Recorder) Wait(ctx context.Context) error {
	return r.tasks.Wait(ctx)
}

// OriginAddress returns the caller's address: the first X-Forwarded-For entry when present,
// otherwise the host part of the connection's remote address.
func OriginAddress(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
