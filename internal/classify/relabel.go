package classify

import (
	"sort"

	"drugsecure/pkg/domain"
)

// Ranking maps raw clustering groups to ordinal tiers.
type Ranking struct {
	// Ordinal is indexed by raw group.
	Ordinal [domain.ClusterCount]domain.ClusterID
	// Means holds the mean potency per raw group; an empty group has mean 0.
	Means         [domain.ClusterCount]float64
	LowConfidence bool
}

// Rank orders raw groups by descending mean potency. Equal means keep raw
// group order. Adjacent ranked means within LowConfidenceGap flag the
// ranking as low confidence.
func Rank(samples []domain.Sample, groups []int) Ranking {
	var (
		sums   [domain.ClusterCount]float64
		counts [domain.ClusterCount]int
		r      Ranking
	)
	for i, g := range groups {
		sums[g] += samples[i].Value(domain.FeaturePotency)
		counts[g]++
	}
	order := make([]int, domain.ClusterCount)
	for g := range order {
		order[g] = g
		if counts[g] > 0 {
			r.Means[g] = sums[g] / float64(counts[g])
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return r.Means[order[a]] > r.Means[order[b]]
	})
	for rank, g := range order {
		r.Ordinal[g] = domain.Clusters[rank]
		if rank > 0 && r.Means[order[rank-1]]-r.Means[g] <= LowConfidenceGap {
			r.LowConfidence = true
		}
	}
	return r
}
