package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"drugsecure/internal/adapters/reports"
	"drugsecure/internal/core"
	"drugsecure/internal/ingest"
	"drugsecure/pkg/domain"
)

// bindForm decodes an ingest.Form body and validates it. On failure the
// response has been written.
func bindForm(c *gin.Context) (ingest.Form, domain.Sample, bool) {
	var form ingest.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sample payload"})
		return form, domain.Sample{}, false
	}
	sample, err := form.Validate()
	if err != nil {
		writeFormError(c, form, err)
		return form, domain.Sample{}, false
	}
	return form, sample, true
}

// writeFormError reports a rejected submission. 422 bodies echo the form so
// the client can correct it in place.
func writeFormError(c *gin.Context, form ingest.Form, err error) {
	var (
		validation domain.ValidationError
		violation  domain.RuleViolationError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "fields": validation.Fields, "form": form})
	case errors.As(err, &violation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "violations": violation.Result.Violations, "form": form})
	default:
		writeError(c, err)
	}
}

// writeError maps domain and service errors onto status codes.
func writeError(c *gin.Context, err error) {
	var (
		validation domain.ValidationError
		violation  domain.RuleViolationError
		diversity  domain.InsufficientDiversityError
		notFound   domain.ErrNotFound
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "fields": validation.Fields})
	case errors.As(err, &violation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "violations": violation.Result.Violations})
	case errors.As(err, &diversity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "diversity": diversity})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrBaselineImmutable):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrAnalysisInProgress), errors.Is(err, core.ErrNoAnalysis):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, reports.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
