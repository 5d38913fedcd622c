package compliance

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"drugsecure/pkg/domain"
)

func stats(means map[domain.Feature]float64) domain.ClusterStats {
	return domain.ClusterStats{Cluster: domain.ClusterHighPurity, Count: 4, Means: means}
}

func TestEvaluateDefaultTable(t *testing.T) {
	b := domain.DefaultBenchmarks()
	cases := []struct {
		name      string
		means     map[domain.Feature]float64
		compliant bool
		failed    []domain.Feature
	}{
		{
			name: "clean",
			means: map[domain.Feature]float64{
				domain.FeatureHeavyMetal: 1.4, domain.FeatureMoisture: 4.3, domain.FeatureTotalAsh: 2.2,
				domain.FeatureAcidInsolAsh: 0.4, domain.FeatureActiveCompound: 95, domain.FeatureWaterExtract: 19,
				domain.FeatureAlcoholExtract: 11, domain.FeaturePH: 6.8,
			},
			compliant: true,
		},
		{
			name:      "ceiling is strict",
			means:     map[domain.Feature]float64{domain.FeatureHeavyMetal: 10, domain.FeatureActiveCompound: 90},
			compliant: false,
			failed:    []domain.Feature{domain.FeatureHeavyMetal},
		},
		{
			name:      "floor is strict",
			means:     map[domain.Feature]float64{domain.FeatureHeavyMetal: 2, domain.FeatureActiveCompound: 85},
			compliant: false,
			failed:    []domain.Feature{domain.FeatureActiveCompound},
		},
		{
			name:      "range is inclusive",
			means:     map[domain.Feature]float64{domain.FeaturePH: 7.5},
			compliant: true,
		},
		{
			name:      "range lower bound",
			means:     map[domain.Feature]float64{domain.FeaturePH: 5.4},
			compliant: false,
			failed:    []domain.Feature{domain.FeaturePH},
		},
		{
			name: "contaminated",
			means: map[domain.Feature]float64{
				domain.FeatureHeavyMetal: 9.7, domain.FeatureMoisture: 6.6, domain.FeatureTotalAsh: 5.0,
				domain.FeatureActiveCompound: 71.3, domain.FeatureWaterExtract: 10.8, domain.FeaturePH: 5.8,
			},
			compliant: false,
			failed:    []domain.Feature{domain.FeatureTotalAsh, domain.FeatureActiveCompound, domain.FeatureWaterExtract},
		},
		{
			name:      "only present features apply",
			means:     map[domain.Feature]float64{},
			compliant: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(stats(tc.means), b)
			if got.Compliant != tc.compliant {
				t.Fatalf("compliant = %v, want %v (%+v)", got.Compliant, tc.compliant, got.Failures)
			}
			var failed []domain.Feature
			for _, f := range got.Failures {
				failed = append(failed, f.Feature)
			}
			if diff := cmp.Diff(tc.failed, failed); diff != "" {
				t.Fatalf("failed features (-want +got):\n%s", diff)
			}
			if got.Benchmark != domain.DefaultBenchmarkName {
				t.Fatalf("unexpected benchmark name %q", got.Benchmark)
			}
		})
	}
}

func TestEvaluateEmptyTierIsCompliant(t *testing.T) {
	s := domain.ClusterStats{Cluster: domain.ClusterModerateRisk, Means: map[domain.Feature]float64{domain.FeatureActiveCompound: 0}}
	if got := Evaluate(s, domain.DefaultBenchmarks()); !got.Compliant {
		t.Fatalf("empty tier should be compliant: %+v", got)
	}
}

func TestEvaluateSwappedTable(t *testing.T) {
	strict := domain.Benchmarks{
		Name:     "strict",
		Ceilings: map[domain.Feature]float64{domain.FeatureHeavyMetal: 1},
	}
	got := Evaluate(stats(map[domain.Feature]float64{domain.FeatureHeavyMetal: 1.4}), strict)
	if got.Compliant || len(got.Failures) != 1 || got.Failures[0].Kind != domain.ThresholdCeiling {
		t.Fatalf("unexpected verdict: %+v", got)
	}
	if got.Failures[0].Limit != 1 || got.Failures[0].Value != 1.4 {
		t.Fatalf("unexpected failure detail: %+v", got.Failures[0])
	}
}

func TestRegistry(t *testing.T) {
	eu := domain.Benchmarks{
		Name:   "eu-ph",
		Label:  "EU Pharmacopoeia",
		Floors: map[domain.Feature]float64{domain.FeatureActiveCompound: 90},
	}
	r, err := NewRegistry(eu)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	list := r.List()
	if len(list) != 2 || list[0].Name != "eu-ph" || list[1].Name != domain.DefaultBenchmarkName {
		t.Fatalf("unexpected list: %+v", list)
	}
	got, ok := r.Lookup("eu-ph")
	if !ok {
		t.Fatalf("expected lookup hit")
	}
	got.Floors[domain.FeatureActiveCompound] = 10
	again, _ := r.Lookup("eu-ph")
	if again.Floors[domain.FeatureActiveCompound] != 90 {
		t.Fatalf("registry leaked mutable table")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatalf("expected lookup miss")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]domain.Benchmarks{
		"no name":         {},
		"unknown ceiling": {Name: "x", Ceilings: map[domain.Feature]float64{"lead": 1}},
		"unknown floor":   {Name: "x", Floors: map[domain.Feature]float64{"lead": 1}},
		"unknown range":   {Name: "x", Ranges: map[domain.Feature]domain.Range{"lead": {Min: 1, Max: 2}}},
		"inverted range":  {Name: "x", Ranges: map[domain.Feature]domain.Range{domain.FeaturePH: {Min: 8, Max: 6}}},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if err := Validate(b); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Validate(domain.DefaultBenchmarks()); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
	if _, err := NewRegistry(domain.Benchmarks{}); err == nil {
		t.Fatalf("expected registry to reject invalid table")
	}
}

func TestSummaries(t *testing.T) {
	in := []domain.ClusterStats{
		stats(map[domain.Feature]float64{domain.FeatureActiveCompound: 95}),
		{Cluster: domain.ClusterContaminated, Count: 2, Means: map[domain.Feature]float64{domain.FeatureActiveCompound: 70}},
	}
	out := Summaries(in, domain.DefaultBenchmarks())
	if !out[0].Compliance.Compliant || out[1].Compliance.Compliant {
		t.Fatalf("unexpected summaries: %+v", out)
	}
	if out[1].Count != 2 {
		t.Fatalf("stats not carried through")
	}
}
