package qa

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/qa-dashboard/internal/api/respond"
	"github.com/qa-dashboard/qa-dashboard/internal/services"
)

// ApproveRequest is the body of an approval submission
type ApproveRequest struct {
	Decision     string   `json:"decision" form:"decision"`
	ManualEmails []string `json:"manual_emails" form:"manual_emails"`
}

// maxManualEmails bounds the extra recipients one approval may add
const maxManualEmails = 200

// bindApproveRequest accepts JSON or a form post. Forms may repeat manual_emails or
// manual_emails[], and a single field may hold a comma separated list.
func bindApproveRequest(c *gin.Context) (*ApproveRequest, error) {
	var req ApproveRequest
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, &services.ValidationError{Message: "invalid request body"}
		}
		return checkManualEmails(&req)
	}

	req.Decision = c.PostForm("decision")
	fields := append(c.PostFormArray("manual_emails"), c.PostFormArray("manual_emails[]")...)
	for _, f := range fields {
		req.ManualEmails = append(req.ManualEmails, strings.Split(f, ",")...)
	}
	return checkManualEmails(&req)
}

func checkManualEmails(req *ApproveRequest) (*ApproveRequest, error) {
	if len(req.ManualEmails) > maxManualEmails {
		return nil, &services.ValidationError{
			Field:   "manual_emails",
			Message: fmt.Sprintf("at most %d addresses are allowed", maxManualEmails),
		}
	}
	return req, nil
}

// @Summary      Approve or fail a draft
// @Description  Records a pass/fail decision and the recipients to notify. Site members always receive the outcome; region members are added on fail. Requires the approver role.
// @Tags         QA
// @Security     Session
// @Accept       json
// @Produce      json
// @Param        id    path  int             true  "Draft ID"
// @Param        body  body  ApproveRequest  true  "Decision and extra recipients"
// @Success      200  {object}  services.ApprovalResult
// @Failure      400  {object}  map[string]interface{}  "Invalid decision"
// @Failure      403  {object}  map[string]interface{}  "Not an approver"
// @Failure      404  {object}  map[string]interface{}  "Draft not found"
// @Failure      409  {object}  map[string]interface{}  "Draft already approved"
// @Router       /api/v1/qa/drafts/{id}/approve [post]
// ApproveHandler commits a QA decision for a draft
// POST /api/v1/qa/drafts/:id/approve
func (h *Handlers) ApproveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := respond.ParseID(c, "id")
		if err != nil {
			respond.Error(c, err, "")
			return
		}
		body, err := bindApproveRequest(c)
		if err != nil {
			respond.Error(c, err, "")
			return
		}

		result, err := h.engine.Approve(c.Request.Context(), services.ApproveRequest{
			DraftID:      id,
			Decision:     body.Decision,
			ManualEmails: body.ManualEmails,
			Actor:        actor(c),
		})
		if err != nil {
			respond.Error(c, err, "failed to record approval")
			return
		}

		if result.AccessLog != nil {
			h.recorder.Ship(result.AccessLog)
		}
		c.JSON(http.StatusOK, result)
	}
}

// @Summary      Preview recipients
// @Description  Lists the directory members of a site followed by the members of a region, without duplicates. Nothing is stored.
// @Tags         QA
// @Security     Session
// @Produce      json
// @Param        site    path  string  true  "Site code"
// @Param        region  path  string  true  "Region code"
// @Success      200  {object}  map[string]interface{}  "recipients: []string, count: int"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Router       /api/v1/qa/recipients/{site}/{region} [get]
// RecipientsHandler previews who a site/region pair reaches
// GET /api/v1/qa/recipients/:site/:region
func (h *Handlers) RecipientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		site := strings.TrimSpace(c.Param("site"))
		region := strings.TrimSpace(c.Param("region"))
		if site == "" || region == "" {
			respond.Error(c, &services.ValidationError{Message: "site and region are required"}, "")
			return
		}

		recipients, err := h.engine.RecipientLookup(c.Request.Context(), site, region, actor(c).Role)
		if err != nil {
			respond.Error(c, err, "failed to look up recipients")
			return
		}
		if recipients == nil {
			recipients = []string{}
		}

		c.JSON(http.StatusOK, gin.H{
			"site":       site,
			"region":     region,
			"recipients": recipients,
			"count":      len(recipients),
		})
	}
}
