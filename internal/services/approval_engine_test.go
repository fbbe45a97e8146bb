package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/db/repositories"
	"github.com/qa-dashboard/qa-dashboard/internal/telemetry"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeDB keeps drafts, approvals and mail instructions in memory and applies the same
// compare-and-set on the locked flag as the SQL repository.
type fakeDB struct {
	mu           sync.Mutex
	drafts       map[int64]*models.Draft
	approvals    map[int64]*models.Approval
	instructions []repositories.RecipientRecord
	accessLogs   []*models.AccessLog
	getErr       error
	commitErr    error
}

func newFakeDB(drafts ...*models.Draft) *fakeDB {
	db := &fakeDB{drafts: map[int64]*models.Draft{}, approvals: map[int64]*models.Approval{}}
	for _, d := range drafts {
		db.drafts[d.ID] = d
	}
	return db
}

func (f *fakeDB) GetByID(_ context.Context, id int64) (*models.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	d, ok := f.drafts[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDB) CommitApproval(_ context.Context, c *repositories.ApprovalCommit) (*models.Approval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	d, ok := f.drafts[c.DraftID]
	if !ok {
		return nil, repositories.ErrDraftNotFound
	}
	if d.Locked {
		return nil, repositories.ErrDraftLocked
	}
	d.Locked = true
	by, on := c.ApprovedBy, c.ApprovedOn
	a := &models.Approval{ID: int64(len(f.approvals) + 1), DraftID: c.DraftID, Passed: c.Passed, ApprovedBy: &by, ApprovedOn: &on}
	f.approvals[c.DraftID] = a
	f.instructions = append(f.instructions, c.Recipients...)
	f.accessLogs = append(f.accessLogs, c.AccessLog)
	return a, nil
}

type fakeDirectory struct {
	sites, regions map[string][]string
	err            error

	mu          sync.Mutex
	regionCalls int
}

func (f *fakeDirectory) SiteMembers(_ context.Context, site string) ([]string, error) {
	return f.sites[site], f.err
}

func (f *fakeDirectory) RegionMembers(_ context.Context, region string) ([]string, error) {
	f.mu.Lock()
	f.regionCalls++
	f.mu.Unlock()
	return f.regions[region], f.err
}

func approver() Actor {
	return Actor{Identity: auth.Identity{Username: "qa.lead"}, Role: auth.RoleApprover, OriginIP: "10.0.0.7"}
}

func newTestEngine(db *fakeDB, dir *fakeDirectory) *Engine {
	e := NewEngine(db, db, dir)
	e.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func scenarioDirectory() *fakeDirectory {
	return &fakeDirectory{
		sites:   map[string][]string{"S1": {"a@x.com"}, "S2": {}},
		regions: map[string][]string{"R1": {"b@x.com"}, "R2": {"c@x.com"}},
	}
}

// ---------------------------------------------------------------------------
// Approve
// ---------------------------------------------------------------------------

func TestApprove_PassThenConflict(t *testing.T) {
	db := newFakeDB(&models.Draft{ID: 1, Site: "S1", Region: "R1", Filename: "d1.pdf"})
	e := newTestEngine(db, scenarioDirectory())
	ctx := context.Background()

	passBefore := testutil.ToFloat64(telemetry.ApprovalsTotal.WithLabelValues("pass"))

	res, err := e.Approve(ctx, ApproveRequest{DraftID: 1, Decision: "pass", Actor: approver()})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com"}, Emails(res.Recipients))
	assert.Equal(t, 1, res.RecipientCount)
	assert.True(t, res.Approval.Passed)
	assert.Equal(t, "qa.lead", *res.Approval.ApprovedBy)
	assert.True(t, db.drafts[1].Locked)
	assert.Equal(t, passBefore+1, testutil.ToFloat64(telemetry.ApprovalsTotal.WithLabelValues("pass")))

	_, err = e.Approve(ctx, ApproveRequest{DraftID: 1, Decision: "fail", Actor: approver()})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Len(t, db.instructions, 1, "second attempt must not add mail instructions")
}

func TestApprove_FailIncludesRegionAndFiltersManual(t *testing.T) {
	db := newFakeDB(&models.Draft{ID: 2, Site: "S2", Region: "R2", Filename: "d2.pdf"})
	e := newTestEngine(db, scenarioDirectory())

	res, err := e.Approve(context.Background(), ApproveRequest{
		DraftID:      2,
		Decision:     "fail",
		ManualEmails: []string{"z@x.com", "not-an-email"},
		Actor:        approver(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c@x.com", "z@x.com"}, Emails(res.Recipients))
	assert.Equal(t, 2, res.RecipientCount)
	assert.False(t, res.Approval.Passed)

	assert.Equal(t, []repositories.RecipientRecord{
		{Email: "c@x.com", Source: models.RecipientSourceDirectory},
		{Email: "z@x.com", Source: models.RecipientSourceManual},
	}, db.instructions)

	require.Len(t, db.accessLogs, 1)
	logEntry := db.accessLogs[0]
	assert.Equal(t, "Approved", logEntry.Action)
	assert.Equal(t, "2:fail", logEntry.Subject)
	assert.Equal(t, "approver", logEntry.Role)
	assert.Equal(t, "10.0.0.7", *logEntry.IPAddress)
}

func TestApprove_PassSkipsRegionLookup(t *testing.T) {
	dir := scenarioDirectory()
	db := newFakeDB(&models.Draft{ID: 1, Site: "S1", Region: "R1"})
	_, err := newTestEngine(db, dir).Approve(context.Background(), ApproveRequest{DraftID: 1, Decision: "pass", Actor: approver()})
	require.NoError(t, err)
	assert.Zero(t, dir.regionCalls)
}

func TestApprove_CheckOrder(t *testing.T) {
	locked := &models.Draft{ID: 5, Site: "S1", Region: "R1", Locked: true}
	open := &models.Draft{ID: 6, Site: "S1", Region: "R1"}

	tests := []struct {
		name   string
		req    ApproveRequest
		target interface{}
	}{
		{"viewer rejected before lookup", ApproveRequest{DraftID: 404, Decision: "bogus", Actor: Actor{Role: auth.RoleViewer}}, new(*AuthorizationError)},
		{"admin is not an approver", ApproveRequest{DraftID: 6, Decision: "pass", Actor: Actor{Role: auth.RoleAdmin}}, new(*AuthorizationError)},
		{"missing draft before decision", ApproveRequest{DraftID: 404, Decision: "bogus", Actor: approver()}, new(*NotFoundError)},
		{"locked before decision", ApproveRequest{DraftID: 5, Decision: "bogus", Actor: approver()}, new(*ConflictError)},
		{"invalid decision", ApproveRequest{DraftID: 6, Decision: "PASS", Actor: approver()}, new(*ValidationError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeDB(locked, open)
			_, err := newTestEngine(db, scenarioDirectory()).Approve(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.target)
			assert.Empty(t, db.instructions)
			assert.False(t, db.drafts[6].Locked)
		})
	}
}

func TestApprove_ConcurrentAttemptsOnlyOneWins(t *testing.T) {
	db := newFakeDB(&models.Draft{ID: 9, Site: "S1", Region: "R1"})
	e := newTestEngine(db, scenarioDirectory())

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Approve(context.Background(), ApproveRequest{DraftID: 9, Decision: "fail", Actor: approver()})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		var conflict *ConflictError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
	assert.Len(t, db.instructions, 2)
}

func TestApprove_RepositoryErrorsMapped(t *testing.T) {
	draft := &models.Draft{ID: 3, Site: "S1", Region: "R1"}

	db := newFakeDB(draft)
	db.commitErr = repositories.ErrDraftNotFound
	_, err := newTestEngine(db, scenarioDirectory()).Approve(context.Background(), ApproveRequest{DraftID: 3, Decision: "pass", Actor: approver()})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	db = newFakeDB(draft)
	db.commitErr = errors.New("connection reset")
	_, err = newTestEngine(db, scenarioDirectory()).Approve(context.Background(), ApproveRequest{DraftID: 3, Decision: "pass", Actor: approver()})
	assert.ErrorContains(t, err, "connection reset")

	db = newFakeDB(draft)
	db.getErr = errors.New("db down")
	_, err = newTestEngine(db, scenarioDirectory()).Approve(context.Background(), ApproveRequest{DraftID: 3, Decision: "pass", Actor: approver()})
	assert.ErrorContains(t, err, "db down")
}

func TestApprove_DirectoryErrorCommitsNothing(t *testing.T) {
	db := newFakeDB(&models.Draft{ID: 4, Site: "S1", Region: "R1"})
	dir := scenarioDirectory()
	dir.err = errors.New("ldap unavailable")

	_, err := newTestEngine(db, dir).Approve(context.Background(), ApproveRequest{DraftID: 4, Decision: "pass", Actor: approver()})
	assert.ErrorContains(t, err, "ldap unavailable")
	assert.False(t, db.drafts[4].Locked)
}

// ---------------------------------------------------------------------------
// RecipientLookup
// ---------------------------------------------------------------------------

func TestRecipientLookup(t *testing.T) {
	dir := &fakeDirectory{
		sites:   map[string][]string{"S1": {"a@x.com", "b@x.com"}},
		regions: map[string][]string{"R1": {"b@x.com", "c@x.com"}},
	}
	e := newTestEngine(newFakeDB(), dir)

	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleApprover} {
		got, err := e.RecipientLookup(context.Background(), "S1", "R1", role)
		require.NoError(t, err)
		assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, got)
	}

	for _, role := range []auth.Role{auth.RoleViewer, auth.RoleNone} {
		_, err := e.RecipientLookup(context.Background(), "S1", "R1", role)
		var authErr *AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	}
}

func TestRecipientLookup_Unknown(t *testing.T) {
	got, err := newTestEngine(newFakeDB(), &fakeDirectory{}).RecipientLookup(context.Background(), "nowhere", "none", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `role "viewer" is not allowed to approve drafts`, (&AuthorizationError{Action: "approve drafts", Role: "viewer"}).Error())
	assert.Equal(t, "draft 7 not found", (&NotFoundError{Resource: "draft", ID: "7"}).Error())
	assert.Equal(t, "decision: bad", (&ValidationError{Field: "decision", Message: "bad"}).Error())
	assert.Equal(t, "bad", (&ValidationError{Message: "bad"}).Error())
}
