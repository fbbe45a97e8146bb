package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/telemetry"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []*models.AccessLog
	err     error
}

func (m *memoryStore) Create(_ context.Context, e *models.AccessLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

type memoryShipper struct {
	mu      sync.Mutex
	shipped []string
}

func (m *memoryShipper) Ship(_ context.Context, e *models.AccessLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shipped = append(m.shipped, e.Subject)
	return nil
}

func (m *memoryShipper) Close() error { return nil }

func waitRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func TestRecorder_RecordWritesAndShips(t *testing.T) {
	store := &memoryStore{}
	shipper := &memoryShipper{}
	r := NewRecorder(store, shipper)

	before := testutil.ToFloat64(telemetry.AuditWritesTotal.WithLabelValues("ok"))
	r.Record(NewEntry("u1", "admin", models.AccessActionView, "drafts:list", ""))
	waitRecorder(t, r)

	require.Len(t, store.entries, 1)
	assert.Equal(t, "drafts:list", store.entries[0].Subject)
	assert.Nil(t, store.entries[0].IPAddress)
	assert.Equal(t, []string{"drafts:list"}, shipper.shipped)
	assert.Equal(t, before+1, testutil.ToFloat64(telemetry.AuditWritesTotal.WithLabelValues("ok")))
}

func TestRecorder_StoreFailureIsSwallowed(t *testing.T) {
	store := &memoryStore{err: errors.New("db down")}
	shipper := &memoryShipper{}
	r := NewRecorder(store, shipper)

	before := testutil.ToFloat64(telemetry.AuditWritesTotal.WithLabelValues("error"))
	r.Record(NewEntry("u1", "viewer", models.AccessActionView, "draft:3", "10.0.0.1"))
	waitRecorder(t, r)

	assert.Empty(t, shipper.shipped, "failed entries are not shipped")
	assert.Equal(t, before+1, testutil.ToFloat64(telemetry.AuditWritesTotal.WithLabelValues("error")))
}

func TestRecorder_ShipOnly(t *testing.T) {
	store := &memoryStore{}
	shipper := &memoryShipper{}
	r := NewRecorder(store, shipper)

	r.Ship(NewEntry("u1", "approver", models.AccessActionApproved, "4:fail", ""))
	waitRecorder(t, r)

	assert.Empty(t, store.entries)
	assert.Equal(t, []string{"4:fail"}, shipper.shipped)

	// nil shipper is fine
	NewRecorder(store, nil).Ship(NewEntry("u1", "approver", models.AccessActionApproved, "5:pass", ""))
}

func TestNewEntry(t *testing.T) {
	e := NewEntry("u", "admin", "View", "draft:1", "192.0.2.1")
	require.NotNil(t, e.IPAddress)
	assert.Equal(t, "192.0.2.1", *e.IPAddress)
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Minute)
}

func TestOriginAddress(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.9", "10.0.0.1:5555", "203.0.113.9"},
		{"forwarded chain uses first", " 203.0.113.9 , 10.0.0.2", "10.0.0.1:5555", "203.0.113.9"},
		{"peer address", "", "198.51.100.4:40000", "198.51.100.4"},
		{"ipv6 peer", "", "[2001:db8::1]:443", "2001:db8::1"},
		{"peer without port", "", "unix-socket", "unix-socket"},
		{"empty forwarded entry falls back", ", 10.0.0.2", "198.51.100.4:1", "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, OriginAddress(req))
		})
	}
}
