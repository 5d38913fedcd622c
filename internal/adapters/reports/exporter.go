// Package reports renders completed analyses into downloadable artifacts
// (JSON, CSV, HTML table, PNG brand chart) and stores them in the blob store
// from a background worker.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"drugsecure/internal/blob"
	"drugsecure/pkg/domain"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// Format is an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
)

// DefaultFormats are rendered when a request names none.
var DefaultFormats = []Format{FormatJSON, FormatCSV}

// ParseFormat resolves a format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatCSV, FormatHTML, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ExportArtifact describes one stored rendering.
type ExportArtifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	AnalysisID  string           `json:"analysis_id"`
	Revision    uint64           `json:"revision"`
	Stale       bool             `json:"stale"`
	Formats     []Format         `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// ExportInput is an enqueue request.
type ExportInput struct {
	Formats     []Format
	RequestedBy string
	Reason      string
}

// AnalysisSource supplies the analysis to export. core.Service satisfies it.
type AnalysisSource interface {
	CurrentAnalysis() (domain.Analysis, bool, error)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures one export lifecycle transition.
type AuditEntry struct {
	ID         string            `json:"id"`
	ExportID   string            `json:"export_id"`
	AnalysisID string            `json:"analysis_id"`
	Actor      string            `json:"actor,omitempty"`
	Status     ExportStatus      `json:"status"`
	Message    string            `json:"message,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Logger is the subset of the structured logger the worker needs.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// ErrQueueFull is returned when the worker cannot accept more requests.
var ErrQueueFull = errors.New("export queue full")

const defaultQueueSize = 32

// Option configures a Worker.
type Option func(*Worker)

// WithAudit sets the audit sink.
func WithAudit(a AuditLogger) Option { return func(w *Worker) { w.audit = a } }

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithQueueSize sets the pending request capacity.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan exportTask, n)
		}
	}
}

// Worker executes report exports asynchronously.
type Worker struct {
	source AnalysisSource
	store  blob.Store
	audit  AuditLogger
	logger Logger
	now    func() time.Time

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id       string
	analysis domain.Analysis
}

// NewWorker constructs an export worker writing into store.
func NewWorker(source AnalysisSource, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source: source,
		store:  store,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan exportTask, defaultQueueSize),
		jobs:   make(map[string]*ExportRecord),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for in-flight work.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the worker and blocks until ctx is done, then stops it.
func (w *Worker) Run(ctx context.Context) error {
	w.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return w.Stop(stopCtx)
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport captures the current analysis and schedules its rendering.
// A stale analysis is exported with Stale set on the record.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.source == nil || w.store == nil {
		return ExportRecord{}, fmt.Errorf("export worker not configured")
	}
	formats, err := uniqueFormats(input.Formats)
	if err != nil {
		return ExportRecord{}, err
	}
	analysis, stale, err := w.source.CurrentAnalysis()
	if err != nil {
		return ExportRecord{}, fmt.Errorf("export analysis: %w", err)
	}

	now := w.now()
	record := ExportRecord{
		ID:          uuid.NewString(),
		AnalysisID:  analysis.ID,
		Revision:    analysis.Revision,
		Stale:       stale,
		Formats:     formats,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()
	w.record(ctx, record.ID, ExportStatusQueued, input.Reason, nil)

	select {
	case w.queue <- exportTask{id: record.ID, analysis: analysis}:
	default:
		w.record(ctx, record.ID, ExportStatusFailed, ErrQueueFull.Error(), nil)
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return ExportRecord{}, ErrQueueFull
	}
	return queued, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// ListExports returns every known export, newest first.
func (w *Worker) ListExports() []ExportRecord {
	w.mu.RLock()
	out := make([]ExportRecord, 0, len(w.jobs))
	for _, r := range w.jobs {
		out = append(out, r.copy())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (w *Worker) process(task exportTask) {
	w.mu.RLock()
	record, ok := w.jobs[task.id]
	var formats []Format
	if ok {
		formats = append(formats, record.Formats...)
	}
	w.mu.RUnlock()
	if !ok {
		return
	}

	w.transition(task.id, ExportStatusRunning, "")

	artifacts := make([]ExportArtifact, len(formats))
	g, ctx := errgroup.WithContext(w.ctx)
	for i, format := range formats {
		g.Go(func() error {
			art, err := w.renderAndStore(ctx, task.id, format, task.analysis)
			if err != nil {
				return fmt.Errorf("%s: %w", format, err)
			}
			artifacts[i] = art
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.logger.Warn("report export failed", "export_id", task.id, "analysis_id", task.analysis.ID, "error", err)
		w.transition(task.id, ExportStatusFailed, err.Error())
		return
	}

	w.logger.Info("report export finished", "export_id", task.id, "analysis_id", task.analysis.ID, "artifacts", len(artifacts))
	w.record(w.ctx, task.id, ExportStatusSucceeded, "", map[string]string{"artifacts": fmt.Sprint(len(artifacts))})
	now := w.now()
	w.mu.Lock()
	if r, ok := w.jobs[task.id]; ok {
		r.Status = ExportStatusSucceeded
		r.Error = ""
		r.Artifacts = artifacts
		r.UpdatedAt = now
		r.CompletedAt = &now
	}
	w.mu.Unlock()
}

func (w *Worker) renderAndStore(ctx context.Context, exportID string, format Format, a domain.Analysis) (ExportArtifact, error) {
	payload, contentType, err := Render(format, a)
	if err != nil {
		return ExportArtifact{}, err
	}
	key := ArtifactKey(exportID, format)
	info, err := w.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"analysis-id": a.ID,
			"export-id":   exportID,
			"format":      string(format),
		},
	})
	if err != nil {
		return ExportArtifact{}, fmt.Errorf("store artifact: %w", err)
	}
	url, err := w.store.PresignURL(ctx, key, blob.SignedURLOptions{})
	if err != nil && !errors.Is(err, blob.ErrUnsupported) {
		return ExportArtifact{}, fmt.Errorf("presign artifact: %w", err)
	}
	created := info.LastModified
	if created.IsZero() {
		created = w.now()
	}
	return ExportArtifact{
		Key:         key,
		Format:      format,
		ContentType: contentType,
		SizeBytes:   int64(len(payload)),
		URL:         url,
		CreatedAt:   created,
	}, nil
}

// ArtifactKey is the blob key of one export rendering.
func ArtifactKey(exportID string, format Format) string {
	return fmt.Sprintf("exports/%s/report.%s", exportID, format)
}

// transition records the audit entry before publishing the new status so
// observers of a terminal status also see its audit trail.
func (w *Worker) transition(id string, status ExportStatus, message string) {
	w.record(w.ctx, id, status, message, nil)
	now := w.now()
	w.mu.Lock()
	if r, ok := w.jobs[id]; ok {
		r.Status = status
		r.Error = message
		r.UpdatedAt = now
		if status == ExportStatusFailed {
			r.CompletedAt = &now
		}
	}
	w.mu.Unlock()
}

func (w *Worker) record(ctx context.Context, id string, status ExportStatus, message string, md map[string]string) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	var analysisID, actor string
	if r, ok := w.jobs[id]; ok {
		analysisID = r.AnalysisID
		actor = r.RequestedBy
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		ExportID:   id,
		AnalysisID: analysisID,
		Actor:      actor,
		Status:     status,
		Message:    message,
		Metadata:   md,
		OccurredAt: w.now(),
	})
}

func uniqueFormats(in []Format) ([]Format, error) {
	if len(in) == 0 {
		return append([]Format(nil), DefaultFormats...), nil
	}
	out := make([]Format, 0, len(in))
	seen := make(map[Format]struct{}, len(in))
	for _, f := range in {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[parsed]; dup {
			continue
		}
		seen[parsed] = struct{}{}
		out = append(out, parsed)
	}
	return out, nil
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

// MemoryAuditLog captures audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
