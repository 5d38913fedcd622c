package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"drugsecure/internal/cluster"
	"drugsecure/pkg/domain"
)

func newPipeline(opts ...Option) *Pipeline {
	return New(cluster.KMeans{}, opts...)
}

func TestClassifyBaselineCardinality(t *testing.T) {
	for _, set := range []domain.FeatureSet{domain.FeatureSetClassic, domain.FeatureSetExtended} {
		t.Run(string(set), func(t *testing.T) {
			samples := domain.BaselineSamples()
			res, err := newPipeline(WithFeatureSet(set)).Classify(context.Background(), samples)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if len(res.Samples) != len(samples) {
				t.Fatalf("expected %d analyzed samples, got %d", len(samples), len(res.Samples))
			}
			for i, s := range res.Samples {
				if s.ID != samples[i].ID {
					t.Fatalf("order not preserved at %d: %s vs %s", i, s.ID, samples[i].ID)
				}
				if !s.Cluster.Valid() {
					t.Fatalf("sample %s has invalid cluster %d", s.ID, s.Cluster)
				}
				if s.Label != s.Cluster.Label() {
					t.Fatalf("label mismatch for %s", s.ID)
				}
			}
			var total int
			for _, c := range res.Clusters {
				total += c.Count
			}
			if total != len(samples) || res.Counts.Total != len(samples) {
				t.Fatalf("aggregate counts do not cover all samples: %d/%d", total, res.Counts.Total)
			}
			if res.Counts.Clean+res.Counts.Flagged != res.Counts.Total {
				t.Fatalf("clean+flagged != total: %+v", res.Counts)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	p := newPipeline()
	first, err := p.Classify(context.Background(), domain.BaselineSamples())
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := p.Classify(context.Background(), domain.BaselineSamples())
		if err != nil {
			t.Fatalf("classify: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestClassifyOrdinalPotencyOrdering(t *testing.T) {
	res, err := newPipeline().Classify(context.Background(), domain.BaselineSamples())
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var prev float64
	havePrev := false
	for _, c := range res.Clusters {
		if c.Count == 0 {
			continue
		}
		mean, ok := c.Mean(domain.FeaturePotency)
		if !ok {
			t.Fatalf("cluster %d missing potency mean", c.Cluster)
		}
		if havePrev && mean > prev {
			t.Fatalf("cluster %d potency %.2f exceeds previous tier %.2f", c.Cluster, mean, prev)
		}
		prev, havePrev = mean, true
	}
}

func TestClassifyBaselineBrandOrdering(t *testing.T) {
	res, err := newPipeline().Classify(context.Background(), domain.BaselineSamples())
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	scores := map[string]int{}
	for _, b := range res.Brands {
		scores[b.Brand] = b.Score
	}
	if len(scores) != 3 {
		t.Fatalf("expected three brands, got %v", scores)
	}
	if scores["Brand A"] < scores["Brand B"] || scores["Brand A"] <= scores["Brand C"] {
		t.Fatalf("expected Brand A highest, got %v", scores)
	}
	if scores["Brand C"] > scores["Brand B"] {
		t.Fatalf("expected Brand C lowest, got %v", scores)
	}
	if res.Brands[0].Brand != "Brand A" || res.Brands[2].Brand != "Brand C" {
		t.Fatalf("brands not in first-appearance order: %+v", res.Brands)
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	samples := domain.BaselineSamples()
	samples[0].Descriptors.Phytochemicals = map[string]domain.ScreenResult{"alkaloids": domain.ScreenPresent}
	want := domain.CloneSamples(samples)
	res, err := newPipeline().Classify(context.Background(), samples)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	res.Samples[0].Descriptors.Phytochemicals["alkaloids"] = domain.ScreenAbsent
	if diff := cmp.Diff(want, samples); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestClassifyCentroidReinsertion(t *testing.T) {
	p := newPipeline()
	baseline := domain.BaselineSamples()
	res, err := p.Classify(context.Background(), baseline)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	top := res.Clusters[0]
	if top.Count == 0 {
		t.Fatalf("expected populated high purity tier")
	}
	centroid := domain.Sample{ID: "C-001", Brand: "Brand D", Origin: domain.OriginUser}
	for f, v := range top.Means {
		centroid.SetValue(f, v)
	}
	rerun, err := p.Classify(context.Background(), append(baseline, centroid))
	if err != nil {
		t.Fatalf("classify with centroid: %v", err)
	}
	got := rerun.Samples[len(rerun.Samples)-1]
	if got.ID != "C-001" || got.Cluster != domain.ClusterHighPurity {
		t.Fatalf("centroid sample landed in %d (%s)", got.Cluster, got.ID)
	}
}

func TestClassifyDiversityGuard(t *testing.T) {
	five := domain.BaselineSamples()[:5]
	constant := domain.BaselineSamples()
	for i := range constant {
		constant[i].PH = 6.5
	}
	cases := []struct {
		name     string
		samples  []domain.Sample
		constant []domain.Feature
	}{
		{name: "too few", samples: five},
		{name: "empty", samples: nil},
		{name: "constant feature", samples: constant, constant: []domain.Feature{domain.FeaturePH}},
	}
	stub := &stubClusterer{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := New(stub).Classify(context.Background(), tc.samples)
			var div domain.InsufficientDiversityError
			if !errors.As(err, &div) {
				t.Fatalf("expected InsufficientDiversityError, got %v", err)
			}
			if diff := cmp.Diff(tc.constant, div.ConstantFeatures); diff != "" {
				t.Fatalf("constant features (-want +got):\n%s", diff)
			}
			if res.Samples != nil || res.Clusters != nil {
				t.Fatalf("expected no partial output")
			}
		})
	}
	if stub.calls != 0 {
		t.Fatalf("clusterer must not run when the guard fails")
	}
}

func TestClassifyClassicIgnoresExtendedConstants(t *testing.T) {
	samples := domain.BaselineSamples()
	for i := range samples {
		samples[i].BulkDensity = 0.5
	}
	if _, err := New(&stubClusterer{}, WithFeatureSet(domain.FeatureSetClassic)).Classify(context.Background(), samples); err != nil {
		t.Fatalf("classic set must not check bulk density: %v", err)
	}
	if _, err := New(&stubClusterer{}).Classify(context.Background(), samples); !domain.IsInsufficientDiversity(err) {
		t.Fatalf("extended set must reject constant bulk density, got %v", err)
	}
}

func TestClassifyClustererFailures(t *testing.T) {
	cases := map[string]*stubClusterer{
		"error":        {err: errors.New("boom")},
		"short":        {assign: []int{0, 1}},
		"out of range": {assign: repeat(3, 18)},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(stub).Classify(context.Background(), domain.BaselineSamples()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestClassifyHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newPipeline().Classify(ctx, domain.BaselineSamples()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type stubClusterer struct {
	assign []int
	err    error
	calls  int
	seed   uint64
	k      int
	points [][]float64
}

func (s *stubClusterer) Cluster(points [][]float64, k int, seed uint64) ([]int, error) {
	s.calls++
	s.seed, s.k, s.points = seed, k, points
	if s.err != nil {
		return nil, s.err
	}
	if s.assign != nil {
		return s.assign, nil
	}
	out := make([]int, len(points))
	for i := range out {
		out[i] = i % k
	}
	return out, nil
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Warn(msg string, kv ...any) {
	l.warnings = append(l.warnings, fmt.Sprint(append([]any{msg}, kv...)...))
}

func TestClassifyPassesSeedAndNormalizedPoints(t *testing.T) {
	stub := &stubClusterer{}
	if _, err := New(stub, WithSeed(7), WithFeatureSet(domain.FeatureSetClassic)).Classify(context.Background(), domain.BaselineSamples()); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if stub.seed != 7 || stub.k != 3 {
		t.Fatalf("unexpected seed/k: %d/%d", stub.seed, stub.k)
	}
	if len(stub.points[0]) != 5 {
		t.Fatalf("expected 5 classic dimensions, got %d", len(stub.points[0]))
	}
	for _, p := range stub.points {
		for _, v := range p {
			if v < 0 || v > 1 {
				t.Fatalf("normalized value out of range: %v", v)
			}
		}
	}
}

// A single contaminated feature does not outweigh the rest of a High Purity
// profile: the edited row keeps its tier and only the tier's heavy-metal mean
// moves.
func TestClassifyEditedHeavyMetalKeepsPotencyTier(t *testing.T) {
	for _, set := range []domain.FeatureSet{domain.FeatureSetClassic, domain.FeatureSetExtended} {
		t.Run(string(set), func(t *testing.T) {
			p := newPipeline(WithFeatureSet(set))
			run := func(heavyMetal float64) Result {
				t.Helper()
				samples := domain.BaselineSamples()
				edited := samples[0].Clone()
				edited.ID = "C-001"
				edited.Origin = domain.OriginUser
				edited.HeavyMetalPpm = heavyMetal
				res, err := p.Classify(context.Background(), append(samples, edited))
				if err != nil {
					t.Fatalf("classify: %v", err)
				}
				return res
			}
			tierOf := func(res Result) domain.ClusterID {
				return res.Samples[len(res.Samples)-1].Cluster
			}
			heavyMetalMean := func(res Result) float64 {
				for _, c := range res.Clusters {
					if c.Cluster == domain.ClusterHighPurity {
						v, _ := c.Mean(domain.FeatureHeavyMetal)
						return v
					}
				}
				t.Fatalf("high purity tier missing")
				return 0
			}
			counts := func(res Result) []int {
				out := make([]int, 0, len(res.Clusters))
				for _, c := range res.Clusters {
					out = append(out, c.Count)
				}
				return out
			}

			before, after := run(1.2), run(50.0)
			if tierOf(before) != domain.ClusterHighPurity || tierOf(after) != domain.ClusterHighPurity {
				t.Fatalf("expected edited row in high purity before and after, got %d and %d", tierOf(before), tierOf(after))
			}
			if diff := cmp.Diff(counts(before), counts(after)); diff != "" {
				t.Fatalf("tier sizes changed (-before +after):\n%s", diff)
			}
			if heavyMetalMean(after) <= heavyMetalMean(before) {
				t.Fatalf("expected high purity heavy-metal mean to rise, got %g -> %g", heavyMetalMean(before), heavyMetalMean(after))
			}
		})
	}
}
