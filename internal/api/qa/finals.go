package qa

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/qa-dashboard/internal/api/respond"
	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/documents"
	"github.com/qa-dashboard/qa-dashboard/internal/services"
	"github.com/qa-dashboard/qa-dashboard/internal/storage"
)

// @Summary      List final reports
// @Description  Paginated list of published reports, newest approval first.
// @Tags         QA
// @Security     Session
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page"
// @Success      200  {object}  map[string]interface{}  "finals: []models.FinalReport, pagination: map"
// @Router       /api/v1/qa/finals [get]
// ListFinalsHandler lists final reports
// GET /api/v1/qa/finals
func (h *Handlers) ListFinalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := respond.ParsePage(c, h.cfg.Review.DefaultPageSize, h.cfg.Review.MaxPageSize)

		finals, total, err := h.finals.List(c.Request.Context(), page.PerPage, page.Offset())
		if err != nil {
			respond.Error(c, err, "failed to list final reports")
			return
		}

		h.recordView(c, "finals:list")
		c.JSON(http.StatusOK, gin.H{
			"finals":     finals,
			"pagination": page.JSON(total),
		})
	}
}

// @Summary      Get final report
// @Tags         QA
// @Security     Session
// @Produce      json
// @Param        id  path  int  true  "Final report ID"
// @Success      200  {object}  map[string]interface{}  "final: models.FinalReport, pdf_url: string"
// @Failure      404  {object}  map[string]interface{}  "Final report not found"
// @Router       /api/v1/qa/finals/{id} [get]
// GetFinalHandler returns a final report with its PDF URL
// GET /api/v1/qa/finals/:id
func (h *Handlers) GetFinalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := respond.ParseID(c, "id")
		if err != nil {
			respond.Error(c, err, "")
			return
		}

		final, err := h.finals.GetByID(c.Request.Context(), id)
		if err != nil {
			respond.Error(c, err, "failed to load final report")
			return
		}
		if final == nil {
			respond.Error(c, &services.NotFoundError{Resource: "final report", ID: fmt.Sprint(id)}, "")
			return
		}

		pdfURL, err := h.docs.DocumentURL(c.Request.Context(), documents.KindFinal, final.Filename)
		if err != nil {
			respond.Error(c, err, "failed to resolve document URL")
			return
		}

		h.recordView(c, fmt.Sprintf("final:%d", id))
		c.JSON(http.StatusOK, gin.H{
			"final":   final,
			"pdf_url": pdfURL,
		})
	}
}

// ServeFileHandler streams a document from local storage. Drafts are restricted to admins and
// approvers; finals are readable by any dashboard role.
// GET /files/*path
func (h *Handlers) ServeFileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := storage.CleanPath(c.Param("path"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		kind, ok := h.docs.KindOf(p)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}

		role := actor(c).Role
		if kind == documents.KindDraft && !role.In(auth.RoleAdmin, auth.RoleApprover) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		rc, err := h.docs.Open(c.Request.Context(), p)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			respond.Error(c, err, "failed to read document")
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		h.recordView(c, "file:"+p)
		c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
			"Content-Disposition": "inline",
			"Cache-Control":       "private, no-store",
		})
	}
}
