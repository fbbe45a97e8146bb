package qa

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/qa-dashboard/internal/api/respond"
	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
	"github.com/qa-dashboard/qa-dashboard/internal/documents"
	"github.com/qa-dashboard/qa-dashboard/internal/services"
)

// draftSummary is a row of the pending drafts list
type draftSummary struct {
	*models.Draft
	Label string `json:"label"`
}

// @Summary      List pending drafts
// @Description  Paginated list of drafts awaiting a QA decision, newest first. Requires the admin or approver role.
// @Tags         QA
// @Security     Session
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page (default review.default_page_size)"
// @Success      200  {object}  map[string]interface{}  "drafts: []draftSummary, pagination: map"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Router       /api/v1/qa/drafts [get]
// ListDraftsHandler lists drafts that are not yet locked
// GET /api/v1/qa/drafts?page=1&per_page=25
func (h *Handlers) ListDraftsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := respond.ParsePage(c, h.cfg.Review.DefaultPageSize, h.cfg.Review.MaxPageSize)

		drafts, total, err := h.drafts.ListPending(c.Request.Context(), page.PerPage, page.Offset())
		if err != nil {
			respond.Error(c, err, "failed to list drafts")
			return
		}

		rows := make([]draftSummary, len(drafts))
		for i, d := range drafts {
			rows[i] = draftSummary{Draft: d, Label: d.Label()}
		}

		h.recordView(c, "drafts:list")
		c.JSON(http.StatusOK, gin.H{
			"drafts":     rows,
			"pagination": page.JSON(total),
		})
	}
}

// @Summary      Get draft detail
// @Description  Returns the draft, a time-limited PDF URL, the site and region directory members, recipients already recorded and the approval if one exists.
// @Tags         QA
// @Security     Session
// @Produce      json
// @Param        id  path  int  true  "Draft ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}  "Invalid draft ID"
// @Failure      404  {object}  map[string]interface{}  "Draft not found"
// @Router       /api/v1/qa/drafts/{id} [get]
// GetDraftHandler returns everything the review page needs for one draft
// GET /api/v1/qa/drafts/:id
func (h *Handlers) GetDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := respond.ParseID(c, "id")
		if err != nil {
			respond.Error(c, err, "")
			return
		}
		ctx := c.Request.Context()

		draft, err := h.drafts.GetByID(ctx, id)
		if err != nil {
			respond.Error(c, err, "failed to load draft")
			return
		}
		if draft == nil {
			respond.Error(c, &services.NotFoundError{Resource: "draft", ID: fmt.Sprint(id)}, "")
			return
		}

		pdfURL, err := h.docs.DocumentURL(ctx, documents.KindDraft, draft.Filename)
		if err != nil {
			respond.Error(c, err, "failed to resolve document URL")
			return
		}

		siteMembers, regionMembers, err := h.engine.Members(ctx, draft.Site, draft.Region)
		if err != nil {
			// Members are informational on this page; Approve does its own lookup
			slog.Warn("directory lookup failed for draft detail", "draft_id", id, "error", err)
			siteMembers, regionMembers = []string{}, []string{}
		}

		instructions, err := h.mail.ListByDraft(ctx, id)
		if err != nil {
			respond.Error(c, err, "failed to load recipients")
			return
		}
		manual := make([]string, 0)
		for _, mi := range instructions {
			if mi.SourceType == models.RecipientSourceManual {
				manual = append(manual, mi.Recipient)
			}
		}

		approval, err := h.approvals.GetByDraftID(ctx, id)
		if err != nil {
			respond.Error(c, err, "failed to load approval")
			return
		}

		h.recordView(c, fmt.Sprintf("draft:%d", id))
		c.JSON(http.StatusOK, gin.H{
			"draft":             draftSummary{Draft: draft, Label: draft.Label()},
			"pdf_url":           pdfURL,
			"site_members":      siteMembers,
			"region_members":    regionMembers,
			"manual_recipients": manual,
			"mail_instructions": instructions,
			"approval":          approval,
		})
	}
}
