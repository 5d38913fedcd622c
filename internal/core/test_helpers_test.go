package core

import (
	"context"
	"sync"
	"time"

	"drugsecure/internal/cluster"
	"drugsecure/pkg/domain"
)

func validSample(brand string) domain.Sample {
	return domain.Sample{
		Brand:          brand,
		MoisturePct:    6.2,
		TotalAsh:       4.1,
		AcidInsolAsh:   0.6,
		HeavyMetalPpm:  3.5,
		ActiveCompound: 91,
		WaterExtract:   15,
		AlcoholExtract: 9,
		BulkDensity:    0.52,
		TapDensity:     0.61,
		PH:             6.4,
	}
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// gatedClusterer blocks inside Cluster until release is closed.
type gatedClusterer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedClusterer() *gatedClusterer {
	return &gatedClusterer{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedClusterer) Cluster(points [][]float64, k int, seed uint64) ([]int, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return cluster.KMeans{}.Cluster(points, k, seed)
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	kv    []any
}

func (l *captureLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, kv: kv})
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, kv ...any) { l.add("debug", msg, kv) }
func (l *captureLogger) Info(msg string, kv ...any)  { l.add("info", msg, kv) }
func (l *captureLogger) Warn(msg string, kv ...any)  { l.add("warn", msg, kv) }
func (l *captureLogger) Error(msg string, kv ...any) { l.add("error", msg, kv) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	mu    sync.Mutex
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.ended {
		if r.op == op && (r.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
	s.tracer.mu.Unlock()
}
