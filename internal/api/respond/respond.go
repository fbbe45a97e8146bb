// Package respond holds the JSON error mapping and pagination parsing shared by the API handlers.
package respond

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/qa-dashboard/internal/services"
)

// Error writes err as a JSON error response. Service errors map to their HTTP status;
// anything else is logged and reported as a generic 500 with the given message.
func Error(c *gin.Context, err error, fallback string) {
	var (
		authErr       *services.AuthorizationError
		notFoundErr   *services.NotFoundError
		conflictErr   *services.ConflictError
		validationErr *services.ValidationError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"error": authErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error()})
	default:
		slog.Error(fallback, "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// Page is a parsed page request
type Page struct {
	Page    int
	PerPage int
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// JSON returns the pagination block included in list responses
func (p Page) JSON(total int) gin.H {
	return gin.H{
		"page":     p.Page,
		"per_page": p.PerPage,
		"total":    total,
	}
}

// ParsePage reads page and per_page from the query string. Out-of-range values fall back to
// page 1 and defaultSize; per_page is capped at maxSize. page is capped so the row offset
// stays within a 32-bit integer.
func ParsePage(c *gin.Context, defaultSize, maxSize int) Page {
	if defaultSize < 1 {
		defaultSize = 20
	}
	if maxSize < defaultSize {
		maxSize = defaultSize
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultSize)))

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultSize
	}
	if perPage > maxSize {
		perPage = maxSize
	}
	if maxPage := math.MaxInt32/perPage + 1; page > maxPage {
		page = maxPage
	}
	return Page{Page: page, PerPage: perPage}
}

// ParseID parses a positive integer path parameter
func ParseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, &services.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}
