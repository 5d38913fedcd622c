// Package ingest validates user-entered sample rows and parses bulk pasted
// rows into forms.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"drugsecure/pkg/domain"
)

// FieldValue is a raw numeric input. It decodes from either a JSON number or
// a JSON string so that malformed entries can be reported per field instead
// of failing the whole request body.
type FieldValue string

// UnmarshalJSON accepts numbers, strings and null.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FieldValue(s)
	default:
		*v = FieldValue(data)
	}
	return nil
}

// Float parses the value.
func (v FieldValue) Float() (float64, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, fmt.Errorf("value is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be a number")
	}
	return f, nil
}

// Form is one user-entered row before validation. Values is keyed by feature.
type Form struct {
	Brand       string                        `json:"brand"`
	Values      map[domain.Feature]FieldValue `json:"values"`
	Descriptors domain.Descriptors            `json:"descriptors"`
}

// Validate converts the form into a sample. All ten numeric features are
// required. On failure it returns a domain.ValidationError listing every
// rejected field; the form itself is left untouched for correction.
func (f Form) Validate() (domain.Sample, error) {
	var fields []domain.FieldError
	s := domain.Sample{
		Brand:       strings.TrimSpace(f.Brand),
		Origin:      domain.OriginUser,
		Descriptors: f.Descriptors,
	}
	if s.Brand == "" {
		fields = append(fields, domain.FieldError{Field: "brand", Message: "brand is required"})
	}
	for _, feat := range domain.AllFeatures {
		v, err := f.Values[feat].Float()
		if err != nil {
			fields = append(fields, domain.FieldError{Field: string(feat), Message: err.Error()})
			continue
		}
		switch {
		case feat.StrictlyPositive() && v <= 0:
			fields = append(fields, domain.FieldError{Field: string(feat), Message: "must be greater than zero"})
			continue
		case v < 0:
			fields = append(fields, domain.FieldError{Field: string(feat), Message: "must be non-negative"})
			continue
		}
		s.SetValue(feat, v)
	}
	for name, result := range f.Descriptors.Phytochemicals {
		if result != domain.ScreenPresent && result != domain.ScreenAbsent {
			fields = append(fields, domain.FieldError{Field: "phytochemicals." + name, Message: "must be present or absent"})
		}
	}
	if len(fields) > 0 {
		return domain.Sample{}, domain.ValidationError{Fields: fields}
	}
	return s, nil
}

// FormFromSample renders a stored sample back into an editable form.
func FormFromSample(s domain.Sample) Form {
	f := Form{Brand: s.Brand, Values: make(map[domain.Feature]FieldValue, len(domain.AllFeatures)), Descriptors: s.Descriptors}
	for _, feat := range domain.AllFeatures {
		f.Values[feat] = FieldValue(strconv.FormatFloat(s.Value(feat), 'f', -1, 64))
	}
	return f
}
