// Package telemetry provides application-level observability for the QA dashboard.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by cmd/server:
//
//	GET http(s)://<host>:<QAD_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. It is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Approval decisions and mail instructions recorded
//   - Directory lookups and the directory cache
//   - Audit log writes
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/qa/drafts/:id)
// rather than the raw request URL so draft ids and site names never become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Review workflow metrics.
//
// ApprovalsTotal counts committed approvals by decision ("pass" or "fail").
// MailInstructionsTotal counts recorded notification recipients by source ("directory" or "manual").
//
// Example PromQL queries:
//   - Failure share:  sum(rate(qa_approvals_total{decision="fail"}[1d])) / sum(rate(qa_approvals_total[1d]))
var (
	ApprovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_approvals_total",
			Help: "Total number of committed draft approvals, by decision.",
		},
		[]string{"decision"},
	)

	MailInstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_mail_instructions_total",
			Help: "Total number of mail instructions recorded, by recipient source.",
		},
		[]string{"source"},
	)
)

// Directory metrics.
//
// DirectoryLookupsTotal has labels {kind, result}: kind is "site" or "region", result is "ok" or "error".
// Only lookups that reach the backend are counted; cache hits show up in DirectoryCacheTotal.
var (
	DirectoryLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_directory_lookups_total",
			Help: "Total number of directory backend lookups, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	DirectoryLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qa_directory_lookup_duration_seconds",
			Help:    "Duration of directory backend lookups, by kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	DirectoryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_directory_cache_total",
			Help: "Directory cache lookups, by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)

// AuditWritesTotal counts background access log writes by result ("ok" or "error").
// An alert on a rising error rate catches a database or shipper outage that request
// handling would otherwise hide.
var AuditWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "qa_audit_writes_total",
		Help: "Total number of access log writes, by result.",
	},
	[]string{"result"},
)

// DBOpenConnections tracks the number of open connections held by the sql.DB pool.
// It is sampled every 30 seconds by StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "qa_db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples connection pool statistics every 30 seconds until ctx is
// cancelled or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := db.PingContext(ctx); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}

// ResultLabel maps an error onto the "ok"/"error" label used by the result-labelled collectors
func ResultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
