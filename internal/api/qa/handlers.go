// Package qa implements the review dashboard endpoints: draft listing and detail, recipient
// lookup, approvals, final reports and document passthrough for local storage.
package qa

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/qa-dashboard/internal/audit"
	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/documents"
	"github.com/qa-dashboard/qa-dashboard/internal/middleware"
	"github.com/qa-dashboard/qa-dashboard/internal/services"
)

// DraftReader reads drafts awaiting review
type DraftReader interface {
	GetByID(ctx context.Context, id int64) (*models.Draft, error)
	ListPending(ctx context.Context, limit, offset int) ([]*models.Draft, int, error)
}

// ApprovalReader reads recorded approvals
type ApprovalReader interface {
	GetByDraftID(ctx context.Context, draftID int64) (*models.Approval, error)
}

// MailInstructionReader reads the recipients recorded for a draft
type MailInstructionReader interface {
	ListByDraft(ctx context.Context, draftID int64) ([]*models.MailInstruction, error)
}

// FinalReportReader reads published final reports
type FinalReportReader interface {
	List(ctx context.Context, limit, offset int) ([]*models.FinalReport, int, error)
	GetByID(ctx context.Context, id int64) (*models.FinalReport, error)
}

// ApprovalService runs the approval workflow and directory lookups
type ApprovalService interface {
	Approve(ctx context.Context, req services.ApproveRequest) (*services.ApprovalResult, error)
	Members(ctx context.Context, site, region string) ([]string, []string, error)
	RecipientLookup(ctx context.Context, site, region string, role auth.Role) ([]string, error)
}

// DocumentStore resolves and opens report PDFs
type DocumentStore interface {
	DocumentURL(ctx context.Context, kind documents.Kind, filename string) (string, error)
	KindOf(path string) (documents.Kind, bool)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// AccessRecorder writes access log entries
type AccessRecorder interface {
	Record(entry *models.AccessLog)
	Ship(entry *models.AccessLog)
}

// Handlers serves the QA endpoints
type Handlers struct {
	cfg       *config.Config
	drafts    DraftReader
	approvals ApprovalReader
	mail      MailInstructionReader
	finals    FinalReportReader
	engine    ApprovalService
	docs      DocumentStore
	recorder  AccessRecorder
}

// Deps groups the collaborators of the QA handlers
type Deps struct {
	Drafts    DraftReader
	Approvals ApprovalReader
	Mail      MailInstructionReader
	Finals    FinalReportReader
	Engine    ApprovalService
	Documents DocumentStore
	Recorder  AccessRecorder
}

// NewHandlers creates the QA handlers
func NewHandlers(cfg *config.Config, deps Deps) *Handlers {
	return &Handlers{
		cfg:       cfg,
		drafts:    deps.Drafts,
		approvals: deps.Approvals,
		mail:      deps.Mail,
		finals:    deps.Finals,
		engine:    deps.Engine,
		docs:      deps.Documents,
		recorder:  deps.Recorder,
	}
}

// actor describes the authenticated caller of the current request
func actor(c *gin.Context) services.Actor {
	a := services.Actor{
		Role:     middleware.GetRole(c),
		OriginIP: audit.OriginAddress(c.Request),
	}
	if sess, ok := middleware.GetSession(c); ok {
		a.Identity = sess.Identity
	}
	return a
}

// recordView logs a read of subject by the caller
func (h *Handlers) recordView(c *gin.Context, subject string) {
	a := actor(c)
	h.recorder.Record(audit.NewEntry(a.Identity.Username, a.Role.String(), models.AccessActionView, subject, a.OriginIP))
}
