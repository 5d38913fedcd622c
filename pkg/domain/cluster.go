package domain

import (
	"fmt"
	"time"
)

// ClusterID is the ordinal quality tier assigned to an analyzed sample. It is
// derived from ranking raw clustering groups by mean potency and never equals
// the raw group index.
type ClusterID int

// Ordinal quality tiers.
const (
	ClusterHighPurity   ClusterID = 1
	ClusterModerateRisk ClusterID = 2
	ClusterContaminated ClusterID = 3
)

// ClusterCount is the fixed number of quality tiers.
const ClusterCount = 3

// Clusters lists the tiers in ordinal order.
var Clusters = []ClusterID{ClusterHighPurity, ClusterModerateRisk, ClusterContaminated}

var clusterLabels = map[ClusterID]string{
	ClusterHighPurity:   "High Purity",
	ClusterModerateRisk: "Moderate Risk",
	ClusterContaminated: "Contaminated",
}

// Label returns the fixed presentation label for the tier.
func (c ClusterID) Label() string {
	if l, ok := clusterLabels[c]; ok {
		return l
	}
	return fmt.Sprintf("Cluster %d", int(c))
}

// Valid reports whether c is one of the three ordinal tiers.
func (c ClusterID) Valid() bool {
	return c >= ClusterHighPurity && c <= ClusterContaminated
}

// Flagged reports whether samples in this tier need follow-up.
func (c ClusterID) Flagged() bool {
	return c == ClusterModerateRisk || c == ClusterContaminated
}

// AnalyzedSample is a sample tagged with its ordinal tier.
type AnalyzedSample struct {
	Sample
	Cluster ClusterID `json:"cluster"`
	Label   string    `json:"cluster_label"`
}

// ClusterStats aggregates one ordinal tier. Means is keyed by every active
// clustering feature; features outside the active set are absent.
type ClusterStats struct {
	Cluster ClusterID           `json:"cluster"`
	Label   string              `json:"label"`
	Count   int                 `json:"count"`
	Means   map[Feature]float64 `json:"means"`
}

// Mean returns the tier mean for f and whether the feature was aggregated.
func (s ClusterStats) Mean(f Feature) (float64, bool) {
	v, ok := s.Means[f]
	return v, ok
}

// BrandConsistency is the per-brand share of samples landing in the High
// Purity tier, rounded to an integer percentage.
type BrandConsistency struct {
	Brand      string `json:"brand"`
	Total      int    `json:"total"`
	HighPurity int    `json:"high_purity"`
	Score      int    `json:"score"`
}

// ClusterSummary pairs tier statistics with the compliance verdict against
// the active benchmark table.
type ClusterSummary struct {
	ClusterStats
	Compliance Compliance `json:"compliance"`
}

// AnalysisCounts summarises how many samples were analyzed and flagged.
type AnalysisCounts struct {
	Total   int `json:"total"`
	Clean   int `json:"clean"`
	Flagged int `json:"flagged"`
}

// Analysis is the complete output of a classification run as served to the
// presentation layer. Samples preserve the input order of the run snapshot.
type Analysis struct {
	ID            string             `json:"id"`
	Revision      uint64             `json:"revision"`
	FeatureSet    FeatureSet         `json:"feature_set"`
	Seed          uint64             `json:"seed"`
	Benchmark     string             `json:"benchmark"`
	Samples       []AnalyzedSample   `json:"samples"`
	Clusters      []ClusterSummary   `json:"clusters"`
	Brands        []BrandConsistency `json:"brands"`
	Counts        AnalysisCounts     `json:"counts"`
	LowConfidence bool               `json:"low_confidence"`
	CompletedAt   time.Time          `json:"completed_at"`
}

// Cluster returns the summary for tier c.
func (a Analysis) Cluster(c ClusterID) (ClusterSummary, bool) {
	for _, s := range a.Clusters {
		if s.Cluster == c {
			return s, true
		}
	}
	return ClusterSummary{}, false
}

// Brand returns the consistency entry for brand.
func (a Analysis) Brand(brand string) (BrandConsistency, bool) {
	for _, b := range a.Brands {
		if b.Brand == brand {
			return b, true
		}
	}
	return BrandConsistency{}, false
}
