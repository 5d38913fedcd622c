package classify

import (
	"drugsecure/pkg/domain"
)

// CheckDiversity enforces the classification precondition: at least
// domain.MinClassificationSamples rows and a non-zero range on every
// clustering feature.
func CheckDiversity(samples []domain.Sample, features []domain.Feature) error {
	if len(samples) < domain.MinClassificationSamples {
		return domain.InsufficientDiversityError{Count: len(samples)}
	}
	var constant []domain.Feature
	for _, f := range features {
		lo, hi := featureRange(samples, f)
		if lo == hi {
			constant = append(constant, f)
		}
	}
	if len(constant) > 0 {
		return domain.InsufficientDiversityError{Count: len(samples), ConstantFeatures: constant}
	}
	return nil
}

// Normalize min-max scales each feature into [0, 1]. Callers must have
// passed CheckDiversity for the same samples and features.
func Normalize(samples []domain.Sample, features []domain.Feature) [][]float64 {
	mins := make([]float64, len(features))
	spans := make([]float64, len(features))
	for j, f := range features {
		lo, hi := featureRange(samples, f)
		mins[j] = lo
		spans[j] = hi - lo
	}
	points := make([][]float64, len(samples))
	for i, s := range samples {
		row := make([]float64, len(features))
		for j, f := range features {
			row[j] = (s.Value(f) - mins[j]) / spans[j]
		}
		points[i] = row
	}
	return points
}

func featureRange(samples []domain.Sample, f domain.Feature) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	lo := samples[0].Value(f)
	hi := lo
	for _, s := range samples[1:] {
		v := s.Value(f)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
