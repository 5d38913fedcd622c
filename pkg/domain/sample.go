// Package domain defines the sample records, quality tiers, benchmark tables
// and rule evaluation primitives shared by every drugsecure layer.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Feature identifies a numeric physicochemical measurement on a sample.
type Feature string

// Numeric features recorded for every sample.
const (
	FeatureMoisture       Feature = "moisture_pct"
	FeatureTotalAsh       Feature = "total_ash"
	FeatureAcidInsolAsh   Feature = "acid_insol_ash"
	FeatureHeavyMetal     Feature = "heavy_metal_ppm"
	FeatureActiveCompound Feature = "active_compound_pct"
	FeatureWaterExtract   Feature = "water_extract_pct"
	FeatureAlcoholExtract Feature = "alcohol_extract_pct"
	FeatureBulkDensity    Feature = "bulk_density"
	FeatureTapDensity     Feature = "tap_density"
	FeaturePH             Feature = "ph"
)

// FeaturePotency is the ranking key used to order clusters.
const FeaturePotency = FeatureActiveCompound

// AllFeatures lists every numeric feature in canonical input order. The order
// matches the positional layout accepted by the paste parser.
var AllFeatures = []Feature{
	FeatureMoisture,
	FeatureTotalAsh,
	FeatureAcidInsolAsh,
	FeatureHeavyMetal,
	FeatureActiveCompound,
	FeatureWaterExtract,
	FeatureAlcoholExtract,
	FeatureBulkDensity,
	FeatureTapDensity,
	FeaturePH,
}

var featureLabels = map[Feature]string{
	FeatureMoisture:       "Moisture %",
	FeatureTotalAsh:       "Total Ash %",
	FeatureAcidInsolAsh:   "Acid Insoluble Ash %",
	FeatureHeavyMetal:     "Heavy Metal ppm",
	FeatureActiveCompound: "Active Compound %",
	FeatureWaterExtract:   "Water Extract %",
	FeatureAlcoholExtract: "Alcohol Extract %",
	FeatureBulkDensity:    "Bulk Density",
	FeatureTapDensity:     "Tap Density",
	FeaturePH:             "pH",
}

// Label returns the human readable name of the feature.
func (f Feature) Label() string {
	if l, ok := featureLabels[f]; ok {
		return l
	}
	return string(f)
}

// Known reports whether f is one of the recorded numeric features.
func (f Feature) Known() bool {
	_, ok := featureLabels[f]
	return ok
}

// StrictlyPositive reports whether the feature must be greater than zero
// rather than merely non-negative.
func (f Feature) StrictlyPositive() bool {
	return f == FeatureBulkDensity || f == FeatureTapDensity
}

// FeatureSet selects which numeric features participate in clustering.
type FeatureSet string

// Supported feature sets.
const (
	// FeatureSetClassic clusters on moisture, ash, heavy metal, potency and pH.
	FeatureSetClassic FeatureSet = "classic"
	// FeatureSetExtended clusters on all ten recorded features.
	FeatureSetExtended FeatureSet = "extended"
)

// Features returns the clustering features for the set. Unknown sets fall
// back to the extended set.
func (fs FeatureSet) Features() []Feature {
	switch fs {
	case FeatureSetClassic:
		return []Feature{FeatureMoisture, FeatureTotalAsh, FeatureHeavyMetal, FeatureActiveCompound, FeaturePH}
	default:
		out := make([]Feature, len(AllFeatures))
		copy(out, AllFeatures)
		return out
	}
}

// ParseFeatureSet resolves a configured feature set name.
func ParseFeatureSet(raw string) (FeatureSet, error) {
	switch FeatureSet(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FeatureSetExtended:
		return FeatureSetExtended, nil
	case FeatureSetClassic:
		return FeatureSetClassic, nil
	default:
		return "", fmt.Errorf("unknown feature set %q", raw)
	}
}

// Origin records whether a sample belongs to the fixed baseline or was
// entered by a user.
type Origin string

// Sample origins.
const (
	OriginBaseline Origin = "baseline"
	OriginUser     Origin = "user"
)

// Identifier prefixes reserved per origin.
const (
	BaselineIDPrefix = "S-"
	UserIDPrefix     = "C-"
)

// ScreenResult is the outcome of a qualitative phytochemical screen.
type ScreenResult string

// Qualitative screen outcomes.
const (
	ScreenPresent ScreenResult = "present"
	ScreenAbsent  ScreenResult = "absent"
)

// Phytochemical screens that may be attached to a sample.
var Phytochemicals = []string{"alkaloids", "flavonoids", "steroids", "polyphenols", "saponins", "sugars"}

// Descriptors holds optional descriptive attributes. None of them participate
// in clustering.
type Descriptors struct {
	Color          string                  `json:"color,omitempty"`
	Odor           string                  `json:"odor,omitempty"`
	Taste          string                  `json:"taste,omitempty"`
	ForeignMatter  *float64                `json:"foreign_matter,omitempty"`
	HPTLCRf        *float64                `json:"hptlc_rf,omitempty"`
	Phytochemicals map[string]ScreenResult `json:"phytochemicals,omitempty"`
}

// Sample is one measured batch record.
type Sample struct {
	ID             string      `json:"id"`
	Brand          string      `json:"brand"`
	Origin         Origin      `json:"origin"`
	MoisturePct    float64     `json:"moisture_pct"`
	TotalAsh       float64     `json:"total_ash"`
	AcidInsolAsh   float64     `json:"acid_insol_ash"`
	HeavyMetalPpm  float64     `json:"heavy_metal_ppm"`
	ActiveCompound float64     `json:"active_compound_pct"`
	WaterExtract   float64     `json:"water_extract_pct"`
	AlcoholExtract float64     `json:"alcohol_extract_pct"`
	BulkDensity    float64     `json:"bulk_density"`
	TapDensity     float64     `json:"tap_density"`
	PH             float64     `json:"ph"`
	Descriptors    Descriptors `json:"descriptors"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Value returns the numeric value recorded for feature f.
func (s Sample) Value(f Feature) float64 {
	switch f {
	case FeatureMoisture:
		return s.MoisturePct
	case FeatureTotalAsh:
		return s.TotalAsh
	case FeatureAcidInsolAsh:
		return s.AcidInsolAsh
	case FeatureHeavyMetal:
		return s.HeavyMetalPpm
	case FeatureActiveCompound:
		return s.ActiveCompound
	case FeatureWaterExtract:
		return s.WaterExtract
	case FeatureAlcoholExtract:
		return s.AlcoholExtract
	case FeatureBulkDensity:
		return s.BulkDensity
	case FeatureTapDensity:
		return s.TapDensity
	case FeaturePH:
		return s.PH
	default:
		return 0
	}
}

// SetValue assigns the numeric value for feature f. Unknown features are ignored.
func (s *Sample) SetValue(f Feature, v float64) {
	switch f {
	case FeatureMoisture:
		s.MoisturePct = v
	case FeatureTotalAsh:
		s.TotalAsh = v
	case FeatureAcidInsolAsh:
		s.AcidInsolAsh = v
	case FeatureHeavyMetal:
		s.HeavyMetalPpm = v
	case FeatureActiveCompound:
		s.ActiveCompound = v
	case FeatureWaterExtract:
		s.WaterExtract = v
	case FeatureAlcoholExtract:
		s.AlcoholExtract = v
	case FeatureBulkDensity:
		s.BulkDensity = v
	case FeatureTapDensity:
		s.TapDensity = v
	case FeaturePH:
		s.PH = v
	}
}

// IsBaseline reports whether the sample is part of the immutable baseline.
func (s Sample) IsBaseline() bool {
	return s.Origin == OriginBaseline || strings.HasPrefix(s.ID, BaselineIDPrefix)
}

// CheckConstraints validates the numeric invariants of the sample: every
// feature is non-negative, densities are strictly positive and the brand is
// not blank.
func (s Sample) CheckConstraints() error {
	var fields []FieldError
	if strings.TrimSpace(s.Brand) == "" {
		fields = append(fields, FieldError{Field: "brand", Message: "brand is required"})
	}
	for _, f := range AllFeatures {
		v := s.Value(f)
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			fields = append(fields, FieldError{Field: string(f), Message: "must be a finite number"})
		case f.StrictlyPositive() && v <= 0:
			fields = append(fields, FieldError{Field: string(f), Message: "must be greater than zero"})
		case v < 0:
			fields = append(fields, FieldError{Field: string(f), Message: "must be non-negative"})
		}
	}
	if len(fields) > 0 {
		return ValidationError{Fields: fields}
	}
	return nil
}

// Clone returns a deep copy of the sample.
func (s Sample) Clone() Sample {
	cp := s
	if s.Descriptors.ForeignMatter != nil {
		v := *s.Descriptors.ForeignMatter
		cp.Descriptors.ForeignMatter = &v
	}
	if s.Descriptors.HPTLCRf != nil {
		v := *s.Descriptors.HPTLCRf
		cp.Descriptors.HPTLCRf = &v
	}
	if s.Descriptors.Phytochemicals != nil {
		cp.Descriptors.Phytochemicals = make(map[string]ScreenResult, len(s.Descriptors.Phytochemicals))
		for k, v := range s.Descriptors.Phytochemicals {
			cp.Descriptors.Phytochemicals[k] = v
		}
	}
	return cp
}

// CloneSamples deep copies a slice of samples.
func CloneSamples(in []Sample) []Sample {
	if in == nil {
		return nil
	}
	out := make([]Sample, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
