package domain

// Range is a closed numeric interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies within [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Benchmarks is a named threshold table used to judge cluster aggregates.
// Means must stay strictly below ceilings and strictly above floors; ranges
// are inclusive.
type Benchmarks struct {
	Name     string              `json:"name" yaml:"name"`
	Label    string              `json:"label" yaml:"label"`
	Ceilings map[Feature]float64 `json:"ceilings,omitempty" yaml:"ceilings"`
	Floors   map[Feature]float64 `json:"floors,omitempty" yaml:"floors"`
	Ranges   map[Feature]Range   `json:"ranges,omitempty" yaml:"ranges"`
}

// DefaultBenchmarkName names the built-in guideline table.
const DefaultBenchmarkName = "who-fssai"

// DefaultBenchmarks returns the WHO / FSSAI guideline table.
func DefaultBenchmarks() Benchmarks {
	return Benchmarks{
		Name:  DefaultBenchmarkName,
		Label: "WHO / FSSAI Guidelines",
		Ceilings: map[Feature]float64{
			FeatureHeavyMetal:   10,
			FeatureMoisture:     8,
			FeatureTotalAsh:     5,
			FeatureAcidInsolAsh: 1,
		},
		Floors: map[Feature]float64{
			FeatureActiveCompound: 85,
			FeatureWaterExtract:   12,
			FeatureAlcoholExtract: 7,
		},
		Ranges: map[Feature]Range{
			FeaturePH: {Min: 5.5, Max: 7.5},
		},
	}
}

// Clone returns a deep copy of the table.
func (b Benchmarks) Clone() Benchmarks {
	cp := b
	if b.Ceilings != nil {
		cp.Ceilings = make(map[Feature]float64, len(b.Ceilings))
		for k, v := range b.Ceilings {
			cp.Ceilings[k] = v
		}
	}
	if b.Floors != nil {
		cp.Floors = make(map[Feature]float64, len(b.Floors))
		for k, v := range b.Floors {
			cp.Floors[k] = v
		}
	}
	if b.Ranges != nil {
		cp.Ranges = make(map[Feature]Range, len(b.Ranges))
		for k, v := range b.Ranges {
			cp.Ranges[k] = v
		}
	}
	return cp
}

// ThresholdKind identifies how a benchmark threshold is applied.
type ThresholdKind string

// Threshold kinds.
const (
	ThresholdCeiling ThresholdKind = "ceiling"
	ThresholdFloor   ThresholdKind = "floor"
	ThresholdRange   ThresholdKind = "range"
)

// ComplianceFailure records one aggregate that missed its threshold.
type ComplianceFailure struct {
	Feature Feature       `json:"feature"`
	Kind    ThresholdKind `json:"kind"`
	Value   float64       `json:"value"`
	Limit   float64       `json:"limit"`
	Upper   float64       `json:"upper,omitempty"`
	Message string        `json:"message"`
}

// Compliance is the verdict for one cluster against a benchmark table.
type Compliance struct {
	Benchmark string              `json:"benchmark"`
	Compliant bool                `json:"compliant"`
	Failures  []ComplianceFailure `json:"failures,omitempty"`
}
