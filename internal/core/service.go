package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"drugsecure/internal/classify"
	"drugsecure/internal/cluster"
	"drugsecure/internal/compliance"
	"drugsecure/internal/infra/persistence/memory"
	"drugsecure/pkg/domain"
)

// Service exposes the sample repository and the classification runs over
// baseline plus user rows.
type Service struct {
	store     PersistentStore
	clock     Clock
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	pipeline  *classify.Pipeline
	registry  *compliance.Registry
	benchmark domain.Benchmarks
	features  domain.FeatureSet
	baseline  []domain.Sample
	state     *analysisMachine
	runs      sync.WaitGroup
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	clusterer := o.clusterer
	if clusterer == nil {
		clusterer = cluster.KMeans{}
	}
	bench, ok := o.registry.Lookup(o.benchmark)
	if !ok {
		o.logger.Warn("unknown benchmark table, using default", "benchmark", o.benchmark)
		bench = domain.DefaultBenchmarks()
	}
	return &Service{
		store:   store,
		clock:   o.clock,
		logger:  o.logger,
		audit:   o.audit,
		metrics: o.metrics,
		tracer:  o.tracer,
		pipeline: classify.New(clusterer,
			classify.WithFeatureSet(o.featureSet),
			classify.WithSeed(o.seed),
			classify.WithLogger(o.logger),
		),
		registry:  o.registry,
		benchmark: bench,
		features:  o.featureSet,
		baseline:  domain.BaselineSamples(),
		state:     newAnalysisMachine(o.clock.Now()),
	}
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine installs the default rules.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Benchmark returns the active benchmark table.
func (s *Service) Benchmark() domain.Benchmarks {
	return s.benchmark.Clone()
}

// Benchmarks lists every registered benchmark table.
func (s *Service) Benchmarks() []domain.Benchmarks {
	return s.registry.List()
}

// FeatureSet returns the active clustering feature set.
func (s *Service) FeatureSet() domain.FeatureSet {
	return s.features
}

// run wraps an operation with tracing, metrics, logging and audit.
func (s *Service) run(ctx context.Context, op string, action Action, fn func(context.Context) (string, error)) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	span.End(err)
	duration := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	entry := AuditEntry{
		Operation: op,
		Action:    action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Warn("operation failed", "operation", op, "entity_id", entityID, "error", err)
	} else {
		s.logger.Debug("operation succeeded", "operation", op, "entity_id", entityID, "duration", duration)
	}
	s.audit.Record(ctx, entry)
	return err
}

// ListSamples returns the baseline rows followed by user rows in insertion
// order.
func (s *Service) ListSamples(_ context.Context) []domain.Sample {
	out := domain.CloneSamples(s.baseline)
	return append(out, s.store.ListSamples()...)
}

// GetSample looks up a baseline or user row.
func (s *Service) GetSample(_ context.Context, id string) (domain.Sample, error) {
	if strings.HasPrefix(id, domain.BaselineIDPrefix) {
		for _, b := range s.baseline {
			if b.ID == id {
				return b.Clone(), nil
			}
		}
		return domain.Sample{}, domain.ErrNotFound{ID: id}
	}
	sample, ok := s.store.GetSample(id)
	if !ok {
		return domain.Sample{}, domain.ErrNotFound{ID: id}
	}
	return sample, nil
}

// AddSample stores a new user row. Identifier and origin are assigned by the
// store.
func (s *Service) AddSample(ctx context.Context, sample domain.Sample) (domain.Sample, Result, error) {
	var (
		created domain.Sample
		res     Result
	)
	before := s.store.Revision()
	err := s.run(ctx, "add_sample", ActionCreate, func(ctx context.Context) (string, error) {
		sample.ID = ""
		sample.Origin = domain.OriginUser
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateSample(sample)
			return err
		})
		return created.ID, err
	})
	s.settle(before, err)
	return created, res, err
}

// UpdateSample mutates a user row using the provided mutator.
func (s *Service) UpdateSample(ctx context.Context, id string, mutator func(*domain.Sample) error) (domain.Sample, Result, error) {
	var (
		updated domain.Sample
		res     Result
	)
	before := s.store.Revision()
	err := s.run(ctx, "update_sample", ActionUpdate, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateSample(id, mutator)
			return err
		})
		return id, err
	})
	s.settle(before, err)
	return updated, res, err
}

// ReplaceSample overwrites the measurements, brand and descriptors of a user
// row with those of next.
func (s *Service) ReplaceSample(ctx context.Context, id string, next domain.Sample) (domain.Sample, Result, error) {
	return s.UpdateSample(ctx, id, func(cur *domain.Sample) error {
		cur.Brand = next.Brand
		cur.Descriptors = next.Descriptors
		for _, f := range domain.AllFeatures {
			cur.SetValue(f, next.Value(f))
		}
		return nil
	})
}

// DeleteSample removes a user row.
func (s *Service) DeleteSample(ctx context.Context, id string) (Result, error) {
	var res Result
	before := s.store.Revision()
	err := s.run(ctx, "delete_sample", ActionDelete, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteSample(id)
		})
		return id, err
	})
	s.settle(before, err)
	return res, err
}

// ResetSamples drops every user row and returns the analysis state to
// Pending.
func (s *Service) ResetSamples(ctx context.Context) (int, error) {
	var removed int
	before := s.store.Revision()
	err := s.run(ctx, "reset_samples", ActionDelete, func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			removed = tx.DeleteAllSamples()
			return nil
		})
		return "", err
	})
	if err == nil {
		s.state.reset(s.clock.Now())
	} else {
		s.settle(before, err)
	}
	return removed, err
}

// settle marks the analysis out of date after a mutation. A failed call still
// counts when the store revision moved, as it does when a durable store rolls
// its memory back.
func (s *Service) settle(before uint64, err error) {
	if err != nil && s.store.Revision() == before {
		return
	}
	s.state.mutated(s.clock.Now())
}

// AnalysisState returns a copy of the analysis state machine. A completed
// analysis whose revision no longer matches the store is reported as Stale.
func (s *Service) AnalysisState() AnalysisState {
	st := s.state.snapshot()
	if st.Phase == PhaseComplete && st.Revision != s.store.Revision() {
		st.Phase = PhaseStale
	}
	return st
}

// CurrentAnalysis returns the latest completed analysis and whether it is
// stale. ErrNoAnalysis is returned when nothing has completed.
func (s *Service) CurrentAnalysis() (domain.Analysis, bool, error) {
	a, phase, err := s.state.current()
	if err != nil {
		return domain.Analysis{}, false, err
	}
	stale := phase == PhaseStale || a.Revision != s.store.Revision()
	return a, stale, nil
}

// RunAnalysis classifies the current sample set synchronously.
func (s *Service) RunAnalysis(ctx context.Context) (domain.Analysis, error) {
	if err := s.state.begin(s.clock.Now()); err != nil {
		return domain.Analysis{}, err
	}
	return s.execute(ctx)
}

// StartAnalysis launches a classification in the background. It returns
// ErrAnalysisInProgress if a run is already active. Progress is observed
// through AnalysisState; Wait blocks until background runs finish.
func (s *Service) StartAnalysis(ctx context.Context) error {
	if err := s.state.begin(s.clock.Now()); err != nil {
		return err
	}
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		_, _ = s.execute(context.WithoutCancel(ctx))
	}()
	return nil
}

// Wait blocks until all background analyses have finished.
func (s *Service) Wait() {
	s.runs.Wait()
}

func (s *Service) execute(ctx context.Context) (domain.Analysis, error) {
	var (
		analysis domain.Analysis
		revision uint64
	)
	err := s.run(ctx, "run_analysis", "", func(ctx context.Context) (string, error) {
		samples := domain.CloneSamples(s.baseline)
		if err := s.store.View(ctx, func(view TransactionView) error {
			revision = view.Revision()
			samples = append(samples, view.ListSamples()...)
			return nil
		}); err != nil {
			return "", err
		}
		res, err := s.pipeline.Classify(ctx, samples)
		if err != nil {
			return "", err
		}
		analysis = domain.Analysis{
			ID:            uuid.NewString(),
			Revision:      revision,
			FeatureSet:    s.features,
			Seed:          s.pipeline.Seed(),
			Benchmark:     s.benchmark.Name,
			Samples:       res.Samples,
			Clusters:      compliance.Summaries(res.Clusters, s.benchmark),
			Brands:        res.Brands,
			Counts:        res.Counts,
			LowConfidence: res.LowConfidence,
			CompletedAt:   s.clock.Now(),
		}
		return analysis.ID, nil
	})
	now := s.clock.Now()
	if err != nil {
		s.state.fail(err, revision, now)
		if errors.Is(err, context.Canceled) {
			return domain.Analysis{}, err
		}
		return domain.Analysis{}, fmt.Errorf("run analysis: %w", err)
	}
	phase := s.state.complete(analysis, s.store.Revision(), now)
	if obs, ok := s.metrics.(AnalysisObserver); ok {
		obs.ObserveAnalysis(analysis)
	}
	s.logger.Info("analysis finished",
		"analysis_id", analysis.ID,
		"phase", phase,
		"samples", analysis.Counts.Total,
		"flagged", analysis.Counts.Flagged,
		"low_confidence", analysis.LowConfidence,
	)
	return analysis, nil
}

// Now exposes the service clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}
