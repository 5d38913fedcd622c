// Package httpapi exposes samples, analyses, benchmark tables and report
// exports over a gin router.
package httpapi

import (
	"context"
	"errors"
	"expvar"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drugsecure/internal/adapters/reports"
	"drugsecure/internal/core"
	"drugsecure/internal/ingest"
	"drugsecure/pkg/domain"
)

// SampleService is the subset of core.Service the API drives.
type SampleService interface {
	ListSamples(ctx context.Context) []domain.Sample
	GetSample(ctx context.Context, id string) (domain.Sample, error)
	AddSample(ctx context.Context, sample domain.Sample) (domain.Sample, core.Result, error)
	ReplaceSample(ctx context.Context, id string, next domain.Sample) (domain.Sample, core.Result, error)
	DeleteSample(ctx context.Context, id string) (core.Result, error)
	ResetSamples(ctx context.Context) (int, error)
	RunAnalysis(ctx context.Context) (domain.Analysis, error)
	StartAnalysis(ctx context.Context) error
	AnalysisState() core.AnalysisState
	Benchmark() domain.Benchmarks
	Benchmarks() []domain.Benchmarks
	FeatureSet() domain.FeatureSet
}

// ExportScheduler queues and reports on report exports.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input reports.ExportInput) (reports.ExportRecord, error)
	GetExport(id string) (reports.ExportRecord, bool)
	ListExports() []reports.ExportRecord
}

// Logger receives request logs.
type Logger interface {
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Handler serves the HTTP API.
type Handler struct {
	Samples SampleService
	Exports ExportScheduler
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
	// DebugVars mounts the expvar handler at /debug/vars.
	DebugVars bool
	Logger    Logger
}

// NewHandler constructs a handler over svc. Exports may be nil, in which
// case the export routes are not registered.
func NewHandler(svc SampleService, exports ExportScheduler) *Handler {
	return &Handler{Samples: svc, Exports: exports}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	if h.Logger == nil {
		h.Logger = noopLogger{}
	}
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLog())

	router.GET("/healthz", h.health)
	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	if h.DebugVars {
		router.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/samples", h.listSamples)
		v1.POST("/samples", h.createSample)
		v1.POST("/samples/reset", h.resetSamples)
		v1.POST("/samples/parse", h.parseSamples)
		v1.GET("/samples/:id", h.getSample)
		v1.PUT("/samples/:id", h.replaceSample)
		v1.DELETE("/samples/:id", h.deleteSample)

		v1.POST("/analysis/run", h.runAnalysis)
		v1.GET("/analysis", h.getAnalysis)

		v1.GET("/benchmarks", h.listBenchmarks)

		if h.Exports != nil {
			v1.POST("/exports", h.createExport)
			v1.GET("/exports", h.listExports)
			v1.GET("/exports/:id", h.getExport)
		}
	}
	return router
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		kv := []any{"method", c.Request.Method, "path", c.FullPath(), "status", status, "duration", time.Since(start)}
		if status >= http.StatusInternalServerError {
			h.Logger.Warn("request failed", kv...)
			return
		}
		h.Logger.Info("request served", kv...)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "analysis": h.Samples.AnalysisState().Phase})
}

func (h *Handler) listSamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"samples": h.Samples.ListSamples(c.Request.Context())})
}

func (h *Handler) getSample(c *gin.Context) {
	sample, err := h.Samples.GetSample(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sample": sample, "form": ingest.FormFromSample(sample)})
}

func (h *Handler) createSample(c *gin.Context) {
	form, sample, ok := bindForm(c)
	if !ok {
		return
	}
	created, res, err := h.Samples.AddSample(c.Request.Context(), sample)
	if err != nil {
		writeFormError(c, form, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sample": created, "violations": res.Violations})
}

func (h *Handler) replaceSample(c *gin.Context) {
	form, sample, ok := bindForm(c)
	if !ok {
		return
	}
	updated, res, err := h.Samples.ReplaceSample(c.Request.Context(), c.Param("id"), sample)
	if err != nil {
		writeFormError(c, form, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sample": updated, "violations": res.Violations})
}

func (h *Handler) deleteSample(c *gin.Context) {
	if _, err := h.Samples.DeleteSample(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) resetSamples(c *gin.Context) {
	removed, err := h.Samples.ResetSamples(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

type parseRequest struct {
	Text string `json:"text"`
	// Commit stores every row that validates.
	Commit bool `json:"commit"`
}

type parsedRow struct {
	Form    ingest.Form         `json:"form"`
	Valid   bool                `json:"valid"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
	Sample  *domain.Sample      `json:"sample,omitempty"`
	Message string              `json:"error,omitempty"`
}

type lineError struct {
	Line    int    `json:"line"`
	Message string `json:"error"`
}

func (h *Handler) parseSamples(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parse request payload"})
		return
	}
	forms, lineErrs := ingest.ParsePastedBlock(req.Text)
	rows := make([]parsedRow, 0, len(forms))
	for _, form := range forms {
		row := parsedRow{Form: form}
		sample, err := form.Validate()
		var verr domain.ValidationError
		switch {
		case errors.As(err, &verr):
			row.Fields = verr.Fields
		case err != nil:
			row.Message = err.Error()
		default:
			row.Valid = true
			if req.Commit {
				created, _, err := h.Samples.AddSample(c.Request.Context(), sample)
				if err != nil {
					row.Valid = false
					row.Message = err.Error()
				} else {
					row.Sample = &created
				}
			}
		}
		rows = append(rows, row)
	}
	errs := make([]lineError, 0, len(lineErrs))
	for line, err := range lineErrs {
		errs = append(errs, lineError{Line: line, Message: err.Error()})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Line < errs[j].Line })
	c.JSON(http.StatusOK, gin.H{"rows": rows, "errors": errs})
}

func (h *Handler) runAnalysis(c *gin.Context) {
	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if async {
		if err := h.Samples.StartAnalysis(c.Request.Context()); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"state": h.Samples.AnalysisState()})
		return
	}
	analysis, err := h.Samples.RunAnalysis(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.Samples.AnalysisState()})
}

func (h *Handler) listBenchmarks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":      h.Samples.Benchmark().Name,
		"feature_set": h.Samples.FeatureSet(),
		"benchmarks":  h.Samples.Benchmarks(),
	})
}

type exportRequest struct {
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
	Reason      string   `json:"reason"`
}

func (h *Handler) createExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid export request payload"})
		return
	}
	formats := make([]reports.Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		f, err := reports.ParseFormat(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		formats = append(formats, f)
	}
	record, err := h.Exports.EnqueueExport(c.Request.Context(), reports.ExportInput{
		Formats:     formats,
		RequestedBy: strings.TrimSpace(req.RequestedBy),
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"export": record})
}

func (h *Handler) listExports(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"exports": h.Exports.ListExports()})
}

func (h *Handler) getExport(c *gin.Context) {
	record, ok := h.Exports.GetExport(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "export not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"export": record})
}
