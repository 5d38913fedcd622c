package domain

// baselineRows holds the fixed reference batches. Columns follow AllFeatures.
var baselineRows = []struct {
	id, brand string
	values    [10]float64
}{
	{"S-001", "Brand A", [10]float64{4.2, 2.1, 0.40, 1.2, 95.5, 19.2, 11.4, 0.51, 0.63, 6.8}},
	{"S-002", "Brand A", [10]float64{4.5, 2.3, 0.45, 1.5, 94.2, 18.6, 11.0, 0.50, 0.62, 6.9}},
	{"S-003", "Brand A", [10]float64{3.9, 1.8, 0.30, 0.9, 96.1, 19.8, 11.9, 0.52, 0.64, 7.0}},
	{"S-004", "Brand A", [10]float64{4.8, 2.5, 0.50, 1.8, 93.8, 18.2, 10.6, 0.50, 0.62, 6.7}},
	{"S-005", "Brand A", [10]float64{5.1, 3.2, 0.70, 3.5, 88.5, 15.4, 8.8, 0.47, 0.60, 6.5}},
	{"S-006", "Brand A", [10]float64{4.0, 2.0, 0.35, 1.1, 95.8, 19.5, 11.6, 0.51, 0.63, 6.8}},
	{"S-007", "Brand B", [10]float64{5.5, 3.5, 0.80, 4.2, 85.0, 14.2, 8.0, 0.46, 0.59, 6.4}},
	{"S-008", "Brand B", [10]float64{4.2, 2.2, 0.45, 1.6, 94.0, 18.4, 10.9, 0.50, 0.62, 6.8}},
	{"S-009", "Brand B", [10]float64{6.1, 4.2, 1.30, 8.5, 75.2, 11.8, 6.1, 0.42, 0.56, 6.1}},
	{"S-010", "Brand B", [10]float64{5.2, 3.1, 0.75, 3.8, 87.5, 15.0, 8.6, 0.47, 0.60, 6.5}},
	{"S-011", "Brand B", [10]float64{4.7, 2.8, 0.60, 2.5, 90.5, 16.3, 9.4, 0.48, 0.61, 6.7}},
	{"S-012", "Brand B", [10]float64{4.5, 2.4, 0.50, 1.9, 93.1, 17.9, 10.4, 0.49, 0.62, 6.8}},
	{"S-013", "Brand C", [10]float64{6.5, 4.8, 1.45, 9.5, 72.1, 11.0, 5.6, 0.41, 0.55, 5.9}},
	{"S-014", "Brand C", [10]float64{7.2, 5.5, 1.60, 11.2, 68.5, 10.2, 5.0, 0.40, 0.54, 5.7}},
	{"S-015", "Brand C", [10]float64{5.4, 3.4, 0.85, 4.8, 83.2, 13.6, 7.6, 0.45, 0.58, 6.3}},
	{"S-016", "Brand C", [10]float64{5.2, 3.1, 0.80, 4.1, 85.5, 14.4, 8.1, 0.46, 0.59, 6.4}},
	{"S-017", "Brand C", [10]float64{6.8, 5.1, 1.55, 10.5, 70.2, 10.6, 5.3, 0.40, 0.55, 5.8}},
	{"S-018", "Brand C", [10]float64{6.3, 4.5, 1.35, 8.8, 74.5, 11.5, 5.9, 0.42, 0.56, 6.0}},
}

// BaselineSamples returns a fresh copy of the immutable reference set.
func BaselineSamples() []Sample {
	out := make([]Sample, len(baselineRows))
	for i, row := range baselineRows {
		s := Sample{ID: row.id, Brand: row.brand, Origin: OriginBaseline}
		for j, f := range AllFeatures {
			s.SetValue(f, row.values[j])
		}
		out[i] = s
	}
	return out
}
