// Package classify turns a sample snapshot into three ordinal quality tiers:
// the set is normalized, clustered, ranked by mean potency and summarised per
// tier and per brand.
package classify

import (
	"context"
	"fmt"

	"drugsecure/pkg/domain"
)

// Clusterer partitions points into k raw groups. The returned slice holds
// one group index in [0, k) per point.
type Clusterer interface {
	Cluster(points [][]float64, k int, seed uint64) ([]int, error)
}

// Logger is the subset of the service logger the pipeline needs.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// DefaultSeed matches the reference seed used for k-means++ initialisation.
const DefaultSeed uint64 = 42

// LowConfidenceGap is the potency separation at or below which adjacent
// tiers are considered indistinct.
const LowConfidenceGap = 2.0

// Pipeline runs the classification steps. It holds no state between calls.
type Pipeline struct {
	clusterer Clusterer
	features  []domain.Feature
	seed      uint64
	logger    Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFeatures selects the clustering features.
func WithFeatures(features []domain.Feature) Option {
	return func(p *Pipeline) {
		if len(features) > 0 {
			p.features = append([]domain.Feature(nil), features...)
		}
	}
}

// WithFeatureSet selects the clustering features by named set.
func WithFeatureSet(set domain.FeatureSet) Option {
	return WithFeatures(set.Features())
}

// WithSeed overrides the clustering seed.
func WithSeed(seed uint64) Option {
	return func(p *Pipeline) { p.seed = seed }
}

// WithLogger sets the logger that receives low-confidence warnings.
func WithLogger(l Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New constructs a pipeline around clusterer. The extended feature set and
// DefaultSeed are used unless overridden.
func New(clusterer Clusterer, opts ...Option) *Pipeline {
	p := &Pipeline{
		clusterer: clusterer,
		features:  domain.FeatureSetExtended.Features(),
		seed:      DefaultSeed,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Features returns the active clustering features.
func (p *Pipeline) Features() []domain.Feature {
	return append([]domain.Feature(nil), p.features...)
}

// Seed returns the clustering seed.
func (p *Pipeline) Seed() uint64 { return p.seed }

// Result is the pipeline output. Samples preserve input order.
type Result struct {
	Samples       []domain.AnalyzedSample
	Clusters      []domain.ClusterStats
	Brands        []domain.BrandConsistency
	Counts        domain.AnalysisCounts
	LowConfidence bool
}

// Classify runs the full pipeline over samples. The input is never mutated.
// domain.InsufficientDiversityError is the only precondition failure; any
// other error comes from the clusterer.
func (p *Pipeline) Classify(ctx context.Context, samples []domain.Sample) (Result, error) {
	if err := CheckDiversity(samples, p.features); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	points := Normalize(samples, p.features)
	groups, err := p.clusterer.Cluster(points, domain.ClusterCount, p.seed)
	if err != nil {
		return Result{}, fmt.Errorf("cluster samples: %w", err)
	}
	if len(groups) != len(samples) {
		return Result{}, fmt.Errorf("clusterer returned %d assignments for %d samples", len(groups), len(samples))
	}
	for i, g := range groups {
		if g < 0 || g >= domain.ClusterCount {
			return Result{}, fmt.Errorf("clusterer assigned sample %d to group %d", i, g)
		}
	}

	ranking := Rank(samples, groups)
	if ranking.LowConfidence {
		p.logger.Warn("cluster potency means are close; ranking is low confidence",
			"means", ranking.Means, "gap", LowConfidenceGap)
	}

	analyzed := make([]domain.AnalyzedSample, len(samples))
	for i, s := range samples {
		c := ranking.Ordinal[groups[i]]
		analyzed[i] = domain.AnalyzedSample{Sample: s.Clone(), Cluster: c, Label: c.Label()}
	}
	return Result{
		Samples:       analyzed,
		Clusters:      ClusterAggregates(analyzed, p.features),
		Brands:        BrandScores(analyzed),
		Counts:        Counts(analyzed),
		LowConfidence: ranking.LowConfidence,
	}, nil
}
