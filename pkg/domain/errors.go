package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a user-entered row fails field
// constraints. It is not fatal: callers surface it inline and keep the input
// for correction.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MinClassificationSamples is the smallest sample set the pipeline accepts.
const MinClassificationSamples = 6

// InsufficientDiversityError is the pipeline precondition failure: too few
// samples, or at least one clustering feature with zero range. It is
// recoverable by adding or editing samples and re-running.
type InsufficientDiversityError struct {
	Count            int       `json:"count"`
	ConstantFeatures []Feature `json:"constant_features,omitempty"`
}

func (e InsufficientDiversityError) Error() string {
	if e.Count < MinClassificationSamples {
		return fmt.Sprintf("insufficient sample diversity: %d samples, need at least %d", e.Count, MinClassificationSamples)
	}
	names := make([]string, len(e.ConstantFeatures))
	for i, f := range e.ConstantFeatures {
		names[i] = string(f)
	}
	return fmt.Sprintf("insufficient sample diversity: constant features %s", strings.Join(names, ", "))
}

// ErrNotFound is returned when a referenced sample does not exist.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("sample %s not found", e.ID)
}

// ErrBaselineImmutable is returned for any attempt to create, edit or delete
// a row in the baseline identifier space.
var ErrBaselineImmutable = errors.New("baseline samples are immutable")

// IsInsufficientDiversity reports whether err is (or wraps) an
// InsufficientDiversityError.
func IsInsufficientDiversity(err error) bool {
	var target InsufficientDiversityError
	return errors.As(err, &target)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}
