package core

import (
	"context"
	"time"

	"drugsecure/internal/classify"
	"drugsecure/internal/compliance"
	"drugsecure/pkg/domain"
)

// Logger is the structured logging surface used by the service. Key/value
// pairs follow the zap sugared convention.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for the audit trail.
type AuditEntry struct {
	Operation string        `json:"operation"`
	Action    Action        `json:"action,omitempty"`
	EntityID  string        `json:"entity_id,omitempty"`
	Status    AuditStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes and latencies.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is an in-flight span.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

type serviceOptions struct {
	clock      Clock
	logger     Logger
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
	clusterer  classify.Clusterer
	featureSet domain.FeatureSet
	seed       uint64
	registry   *compliance.Registry
	benchmark  string
}

func defaultServiceOptions() serviceOptions {
	registry, _ := compliance.NewRegistry()
	return serviceOptions{
		clock:      ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:     noopLogger{},
		audit:      noopAuditRecorder{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		featureSet: domain.FeatureSetExtended,
		seed:       classify.DefaultSeed,
		registry:   registry,
		benchmark:  domain.DefaultBenchmarkName,
	}
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

// WithClock overrides the time source.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if rec != nil {
			o.audit = rec
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithClusterer replaces the default k-means clusterer.
func WithClusterer(c classify.Clusterer) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.clusterer = c
		}
	}
}

// WithFeatureSet selects the clustering feature set.
func WithFeatureSet(set domain.FeatureSet) ServiceOption {
	return func(o *serviceOptions) {
		if set != "" {
			o.featureSet = set
		}
	}
}

// WithSeed sets the clustering seed.
func WithSeed(seed uint64) ServiceOption {
	return func(o *serviceOptions) { o.seed = seed }
}

// WithBenchmarks installs a benchmark registry and selects the active table
// by name. An empty name keeps the default table.
func WithBenchmarks(registry *compliance.Registry, active string) ServiceOption {
	return func(o *serviceOptions) {
		if registry != nil {
			o.registry = registry
		}
		if active != "" {
			o.benchmark = active
		}
	}
}
