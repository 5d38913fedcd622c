package core

import (
	"context"
	"errors"
	"fmt"

	"drugsecure/pkg/domain"
)

// Rule names registered by NewDefaultRulesEngine.
const (
	RuleBaselineImmutable = "baseline_immutable"
	RuleSampleConstraints = "sample_constraints"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewBaselineImmutableRule())
	engine.Register(NewSampleConstraintsRule())
	return engine
}

type baselineImmutableRule struct{}

// NewBaselineImmutableRule blocks any change touching a baseline row.
func NewBaselineImmutableRule() Rule { return baselineImmutableRule{} }

func (baselineImmutableRule) Name() string { return RuleBaselineImmutable }

func (baselineImmutableRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, c := range changes {
		touched := (c.Before != nil && c.Before.IsBaseline()) || (c.After != nil && c.After.IsBaseline())
		if !touched {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     RuleBaselineImmutable,
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("sample %s is part of the baseline and cannot be %sd", c.SampleID(), c.Action),
			SampleID: c.SampleID(),
		})
	}
	return res, nil
}

type sampleConstraintsRule struct{}

// NewSampleConstraintsRule blocks created or updated rows whose numeric
// fields violate their constraints.
func NewSampleConstraintsRule() Rule { return sampleConstraintsRule{} }

func (sampleConstraintsRule) Name() string { return RuleSampleConstraints }

func (sampleConstraintsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, c := range changes {
		if c.After == nil {
			continue
		}
		err := c.After.CheckConstraints()
		if err == nil {
			continue
		}
		var verr domain.ValidationError
		if !errors.As(err, &verr) {
			return Result{}, err
		}
		for _, f := range verr.Fields {
			res.Violations = append(res.Violations, Violation{
				Rule:     RuleSampleConstraints,
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("%s: %s", f.Field, f.Message),
				SampleID: c.SampleID(),
			})
		}
	}
	return res, nil
}
