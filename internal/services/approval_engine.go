// Package services - approval_engine.go implements the approval workflow: authorizing the
// approver, resolving recipients from the directory and committing the decision atomically.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/db/repositories"
	"github.com/qa-dashboard/qa-dashboard/internal/directory"
	"github.com/qa-dashboard/qa-dashboard/internal/telemetry"
)

// DraftStore reads drafts
type DraftStore interface {
	GetByID(ctx context.Context, id int64) (*models.Draft, error)
}

// ApprovalStore commits approval decisions
type ApprovalStore interface {
	CommitApproval(ctx context.Context, c *repositories.ApprovalCommit) (*models.Approval, error)
}

// Actor is the user performing an operation
type Actor struct {
	Identity auth.Identity
	Role     auth.Role
	// OriginIP is the caller's address as recorded in the access log; may be empty
	OriginIP string
}

// ApproveRequest is one submitted QA decision
type ApproveRequest struct {
	DraftID      int64
	Decision     string
	ManualEmails []string
	Actor        Actor
}

// ApprovalResult is the outcome of a committed approval
type ApprovalResult struct {
	Approval       *models.Approval `json:"approval"`
	Recipients     []Recipient      `json:"recipients"`
	RecipientCount int              `json:"recipient_count"`
	// AccessLog is the entry committed alongside the approval
	AccessLog *models.AccessLog `json:"-"`
}

// Engine runs the approval workflow
type Engine struct {
	drafts    DraftStore
	approvals ApprovalStore
	directory directory.Directory
	now       func() time.Time
}

// NewEngine creates an approval engine
func NewEngine(drafts DraftStore, approvals ApprovalStore, dir directory.Directory) *Engine {
	return &Engine{
		drafts:    drafts,
		approvals: approvals,
		directory: dir,
		now:       time.Now,
	}
}

// Approve records a pass/fail decision for a draft and the recipients notified about it.
// Checks run in order: approver role, draft exists, draft not locked, decision valid.
func (e *Engine) Approve(ctx context.Context, req ApproveRequest) (*ApprovalResult, error) {
	if req.Actor.Role != auth.RoleApprover {
		return nil, &AuthorizationError{Action: "approve drafts", Role: req.Actor.Role.String()}
	}

	draftID := strconv.FormatInt(req.DraftID, 10)
	draft, err := e.drafts.GetByID(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if draft == nil {
		return nil, &NotFoundError{Resource: "draft", ID: draftID}
	}
	if draft.Locked {
		return nil, &ConflictError{Message: "draft already approved"}
	}

	decision, ok := models.ParseDecision(req.Decision)
	if !ok {
		return nil, &ValidationError{Field: "decision", Message: "must be \"pass\" or \"fail\""}
	}

	siteMembers, err := e.directory.SiteMembers(ctx, draft.Site)
	if err != nil {
		return nil, fmt.Errorf("failed to look up site members: %w", err)
	}
	var regionMembers []string
	if decision == models.DecisionFail {
		regionMembers, err = e.directory.RegionMembers(ctx, draft.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to look up region members: %w", err)
		}
	}

	recipients := ResolveRecipients(siteMembers, regionMembers, req.ManualEmails, decision)

	now := e.now().UTC()
	actor := req.Actor.Identity.Username
	commit := &repositories.ApprovalCommit{
		DraftID:    req.DraftID,
		Passed:     decision == models.DecisionPass,
		ApprovedBy: actor,
		ApprovedOn: now,
		Recipients: make([]repositories.RecipientRecord, len(recipients)),
		AccessLog: &models.AccessLog{
			Timestamp: now,
			UserID:    actor,
			Role:      req.Actor.Role.String(),
			Action:    models.AccessActionApproved,
			Subject:   fmt.Sprintf("%d:%s", req.DraftID, decision),
			IPAddress: optionalString(req.Actor.OriginIP),
		},
	}
	for i, r := range recipients {
		commit.Recipients[i] = repositories.RecipientRecord{Email: r.Email, Source: r.Source}
	}

	approval, err := e.approvals.CommitApproval(ctx, commit)
	switch {
	case errors.Is(err, repositories.ErrDraftLocked):
		return nil, &ConflictError{Message: "draft already approved"}
	case errors.Is(err, repositories.ErrDraftNotFound):
		return nil, &NotFoundError{Resource: "draft", ID: draftID}
	case err != nil:
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	telemetry.ApprovalsTotal.WithLabelValues(string(decision)).Inc()
	for _, r := range recipients {
		telemetry.MailInstructionsTotal.WithLabelValues(string(r.Source)).Inc()
	}
	slog.Info("draft approval recorded",
		"draft_id", req.DraftID,
		"decision", decision,
		"approved_by", actor,
		"recipients", len(recipients))

	return &ApprovalResult{
		Approval:       approval,
		Recipients:     recipients,
		RecipientCount: len(recipients),
		AccessLog:      commit.AccessLog,
	}, nil
}

// Members returns the directory members of a site and a region
func (e *Engine) Members(ctx context.Context, site, region string) (siteMembers, regionMembers []string, err error) {
	siteMembers, err = e.directory.SiteMembers(ctx, site)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up site members: %w", err)
	}
	regionMembers, err = e.directory.RegionMembers(ctx, region)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up region members: %w", err)
	}
	return siteMembers, regionMembers, nil
}

// RecipientLookup previews who a site/region pair reaches: site members then region members,
// without duplicates. Admins and approvers only; nothing is persisted.
func (e *Engine) RecipientLookup(ctx context.Context, site, region string, role auth.Role) ([]string, error) {
	if !role.In(auth.RoleAdmin, auth.RoleApprover) {
		return nil, &AuthorizationError{Action: "look up recipients", Role: role.String()}
	}
	siteMembers, regionMembers, err := e.Members(ctx, site, region)
	if err != nil {
		return nil, err
	}
	return MergeMembers(siteMembers, regionMembers), nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
