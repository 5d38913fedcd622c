// Package compliance judges tier aggregates against a benchmark table.
package compliance

import (
	"fmt"
	"sort"

	"drugsecure/pkg/domain"
)

// Evaluate reports whether every applicable aggregate in stats satisfies
// its threshold in b. A threshold is applicable when stats carries a mean
// for its feature. Ceilings must be strictly exceeded by the limit, floors
// strictly exceeded by the value, ranges are inclusive. An empty tier has no
// aggregates to judge and is compliant.
func Evaluate(stats domain.ClusterStats, b domain.Benchmarks) domain.Compliance {
	out := domain.Compliance{Benchmark: b.Name, Compliant: true}
	if stats.Count == 0 {
		return out
	}
	for _, f := range sortedKeys(b.Ceilings) {
		v, ok := stats.Mean(f)
		if !ok {
			continue
		}
		if limit := b.Ceilings[f]; !(v < limit) {
			out.Failures = append(out.Failures, domain.ComplianceFailure{
				Feature: f, Kind: domain.ThresholdCeiling, Value: v, Limit: limit,
				Message: fmt.Sprintf("%s %.2f must be below %.2f", f.Label(), v, limit),
			})
		}
	}
	for _, f := range sortedKeys(b.Floors) {
		v, ok := stats.Mean(f)
		if !ok {
			continue
		}
		if limit := b.Floors[f]; !(v > limit) {
			out.Failures = append(out.Failures, domain.ComplianceFailure{
				Feature: f, Kind: domain.ThresholdFloor, Value: v, Limit: limit,
				Message: fmt.Sprintf("%s %.2f must be above %.2f", f.Label(), v, limit),
			})
		}
	}
	for _, f := range sortedKeys(b.Ranges) {
		v, ok := stats.Mean(f)
		if !ok {
			continue
		}
		if r := b.Ranges[f]; !r.Contains(v) {
			out.Failures = append(out.Failures, domain.ComplianceFailure{
				Feature: f, Kind: domain.ThresholdRange, Value: v, Limit: r.Min, Upper: r.Max,
				Message: fmt.Sprintf("%s %.2f must be within %.2f-%.2f", f.Label(), v, r.Min, r.Max),
			})
		}
	}
	out.Compliant = len(out.Failures) == 0
	return out
}

// Summaries pairs every tier with its verdict.
func Summaries(stats []domain.ClusterStats, b domain.Benchmarks) []domain.ClusterSummary {
	out := make([]domain.ClusterSummary, len(stats))
	for i, s := range stats {
		out[i] = domain.ClusterSummary{ClusterStats: s, Compliance: Evaluate(s, b)}
	}
	return out
}

// Validate rejects benchmark tables that name unknown features or carry
// inverted ranges.
func Validate(b domain.Benchmarks) error {
	if b.Name == "" {
		return fmt.Errorf("benchmark table requires a name")
	}
	for _, f := range sortedKeys(b.Ceilings) {
		if !f.Known() {
			return fmt.Errorf("benchmark %s: unknown ceiling feature %q", b.Name, f)
		}
	}
	for _, f := range sortedKeys(b.Floors) {
		if !f.Known() {
			return fmt.Errorf("benchmark %s: unknown floor feature %q", b.Name, f)
		}
	}
	for _, f := range sortedKeys(b.Ranges) {
		if !f.Known() {
			return fmt.Errorf("benchmark %s: unknown range feature %q", b.Name, f)
		}
		if r := b.Ranges[f]; r.Min > r.Max {
			return fmt.Errorf("benchmark %s: range for %s has min %.2f above max %.2f", b.Name, f, r.Min, r.Max)
		}
	}
	return nil
}

// Registry holds named benchmark tables.
type Registry struct {
	tables map[string]domain.Benchmarks
}

// NewRegistry seeds a registry with the default table plus extra.
func NewRegistry(extra ...domain.Benchmarks) (*Registry, error) {
	r := &Registry{tables: map[string]domain.Benchmarks{}}
	def := domain.DefaultBenchmarks()
	r.tables[def.Name] = def
	for _, b := range extra {
		if err := Validate(b); err != nil {
			return nil, err
		}
		r.tables[b.Name] = b.Clone()
	}
	return r, nil
}

// Lookup returns the named table.
func (r *Registry) Lookup(name string) (domain.Benchmarks, bool) {
	b, ok := r.tables[name]
	if !ok {
		return domain.Benchmarks{}, false
	}
	return b.Clone(), true
}

// List returns all tables sorted by name.
func (r *Registry) List() []domain.Benchmarks {
	names := sortedKeys(r.tables)
	out := make([]domain.Benchmarks, len(names))
	for i, n := range names {
		out[i] = r.tables[n].Clone()
	}
	return out
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
