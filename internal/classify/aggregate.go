package classify

import (
	"math"

	"drugsecure/pkg/domain"
)

// ClusterAggregates computes count and feature means for every tier, always
// returning three entries in ordinal order. Empty tiers report zero means.
func ClusterAggregates(analyzed []domain.AnalyzedSample, features []domain.Feature) []domain.ClusterStats {
	out := make([]domain.ClusterStats, len(domain.Clusters))
	for i, c := range domain.Clusters {
		out[i] = domain.ClusterStats{
			Cluster: c,
			Label:   c.Label(),
			Means:   make(map[domain.Feature]float64, len(features)),
		}
		for _, f := range features {
			out[i].Means[f] = 0
		}
	}
	for _, s := range analyzed {
		st := &out[int(s.Cluster)-1]
		st.Count++
		for _, f := range features {
			st.Means[f] += s.Value(f)
		}
	}
	for i := range out {
		if out[i].Count == 0 {
			continue
		}
		for _, f := range features {
			out[i].Means[f] /= float64(out[i].Count)
		}
	}
	return out
}

// BrandScores computes per-brand consistency in order of first appearance.
func BrandScores(analyzed []domain.AnalyzedSample) []domain.BrandConsistency {
	index := make(map[string]int)
	var out []domain.BrandConsistency
	for _, s := range analyzed {
		i, ok := index[s.Brand]
		if !ok {
			i = len(out)
			index[s.Brand] = i
			out = append(out, domain.BrandConsistency{Brand: s.Brand})
		}
		out[i].Total++
		if s.Cluster == domain.ClusterHighPurity {
			out[i].HighPurity++
		}
	}
	for i := range out {
		out[i].Score = ConsistencyScore(out[i].HighPurity, out[i].Total)
	}
	return out
}

// ConsistencyScore is round(100 * highPurity / total), 0 for an empty brand.
func ConsistencyScore(highPurity, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(highPurity) / float64(total)))
}

// Counts summarises clean (tier 1) and flagged (tiers 2 and 3) samples.
func Counts(analyzed []domain.AnalyzedSample) domain.AnalysisCounts {
	c := domain.AnalysisCounts{Total: len(analyzed)}
	for _, s := range analyzed {
		if s.Cluster.Flagged() {
			c.Flagged++
		} else {
			c.Clean++
		}
	}
	return c
}
