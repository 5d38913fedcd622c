package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"maps"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"drugsecure/pkg/domain"
)

var expvarSeq uint64

// OperationStats aggregates the outcomes of one service operation.
type OperationStats struct {
	Success int64   `json:"success"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
}

// AnalysisStats summarises the latest completed analysis.
type AnalysisStats struct {
	ID            string         `json:"id"`
	Revision      uint64         `json:"revision"`
	Tiers         map[string]int `json:"tiers"`
	Brands        map[string]int `json:"brand_consistency"`
	Flagged       int            `json:"flagged"`
	LowConfidence bool           `json:"low_confidence"`
	CompletedAt   time.Time      `json:"completed_at"`
}

// ExpvarMetricsSnapshot is the value published under the recorder's expvar
// name.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	Analysis   *AnalysisStats            `json:"analysis,omitempty"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarMetricsRecorder publishes operation stats and the latest analysis
// summary as a single expvar variable, served at /debug/vars.
type ExpvarMetricsRecorder struct {
	name   string
	mu     sync.Mutex
	ops    map[string]OperationStats
	latest *AnalysisStats
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty name
// gets a unique generated one; expvar panics on duplicates.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("drugsecure_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar variable name.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot copies the current stats.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make(map[string]OperationStats, len(r.ops))
	for op, st := range r.ops {
		ops[op] = st
	}
	snap := ExpvarMetricsSnapshot{Operations: ops, RecordedAt: time.Now().UTC()}
	if r.latest != nil {
		cp := *r.latest
		cp.Tiers = maps.Clone(r.latest.Tiers)
		cp.Brands = maps.Clone(r.latest.Brands)
		snap.Analysis = &cp
	}
	return snap
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ops[operation]
	if success {
		st.Success++
	} else {
		st.Errors++
	}
	st.TotalMS += float64(duration) / float64(time.Millisecond)
	r.ops[operation] = st
}

// ObserveAnalysis implements AnalysisObserver.
func (r *ExpvarMetricsRecorder) ObserveAnalysis(a domain.Analysis) {
	stats := &AnalysisStats{
		ID:            a.ID,
		Revision:      a.Revision,
		Tiers:         make(map[string]int, len(a.Clusters)),
		Brands:        make(map[string]int, len(a.Brands)),
		Flagged:       a.Counts.Flagged,
		LowConfidence: a.LowConfidence,
		CompletedAt:   a.CompletedAt,
	}
	for _, c := range a.Clusters {
		stats.Tiers[c.Label] = c.Count
	}
	for _, b := range a.Brands {
		stats.Brands[b.Brand] = b.Score
	}
	r.mu.Lock()
	r.latest = stats
	r.mu.Unlock()
}

// JSONTraceEntry represents a serialized trace span emitted by JSONTraceTracer.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer serializes spans to a writer and retains them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer constructs a tracer that writes spans as JSON lines to the writer.
// The tracer retains all encoded spans for later inspection via Entries().
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTraceTracer{
		enc: enc,
	}
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements the Tracer interface.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	span := &jsonTraceSpan{
		tracer:    t,
		operation: operation,
		started:   time.Now().UTC(),
	}
	return ctx, span
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	status := "success"
	var errMsg string
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     status,
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		Error:      errMsg,
		StartedAt:  s.started,
		EndedAt:    ended,
	}

	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}

const metricsNamespace = "drugsecure"

// PrometheusMetricsRecorder exports service operation metrics and the shape
// of the latest analysis as Prometheus collectors.
type PrometheusMetricsRecorder struct {
	operations    *prometheus.CounterVec
	durations     *prometheus.HistogramVec
	tierSamples   *prometheus.GaugeVec
	brandScores   *prometheus.GaugeVec
	lowConfidence prometheus.Gauge
}

// NewPrometheusMetricsRecorder registers collectors with reg. A nil reg uses
// the default registerer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMetricsRecorder{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "Total number of service operations by outcome",
			},
			[]string{"operation", "status"},
		),
		durations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of service operations in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		tierSamples: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "analysis_tier_samples",
				Help:      "Samples per quality tier in the latest analysis",
			},
			[]string{"cluster", "label"},
		),
		brandScores: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "analysis_brand_consistency",
				Help:      "Brand consistency score (0-100) in the latest analysis",
			},
			[]string{"brand"},
		),
		lowConfidence: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "analysis_low_confidence",
				Help:      "1 when the latest analysis ranked tiers with close potency means",
			},
		),
	}
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveAnalysis implements AnalysisObserver.
func (r *PrometheusMetricsRecorder) ObserveAnalysis(a domain.Analysis) {
	for _, c := range a.Clusters {
		r.tierSamples.WithLabelValues(strconv.Itoa(int(c.Cluster)), c.Label).Set(float64(c.Count))
	}
	r.brandScores.Reset()
	for _, b := range a.Brands {
		r.brandScores.WithLabelValues(b.Brand).Set(float64(b.Score))
	}
	if a.LowConfidence {
		r.lowConfidence.Set(1)
	} else {
		r.lowConfidence.Set(0)
	}
}

// AnalysisObserver is implemented by metrics recorders that also want the
// outcome of every completed analysis.
type AnalysisObserver interface {
	ObserveAnalysis(domain.Analysis)
}
