package core

import (
	"context"
	"testing"

	"drugsecure/pkg/domain"
)

func TestDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	engine := NewDefaultRulesEngine()
	names := engine.Rules()
	if len(names) != 2 || names[0] != RuleBaselineImmutable || names[1] != RuleSampleConstraints {
		t.Fatalf("unexpected rules: %v", names)
	}
}

func TestBaselineImmutableRule(t *testing.T) {
	base := domain.BaselineSamples()[0]
	user := validSample("Brand D")
	user.ID = "C-001"
	user.Origin = domain.OriginUser

	cases := []struct {
		name   string
		change Change
		want   int
	}{
		{"create user row", Change{Action: ActionCreate, After: &user}, 0},
		{"update baseline", Change{Action: ActionUpdate, Before: &base, After: &base}, 1},
		{"delete baseline", Change{Action: ActionDelete, Before: &base}, 1},
		{"delete user row", Change{Action: ActionDelete, Before: &user}, 0},
	}
	rule := NewBaselineImmutableRule()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := rule.Evaluate(context.Background(), nil, []Change{tc.change})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if len(res.Violations) != tc.want {
				t.Fatalf("expected %d violations, got %+v", tc.want, res.Violations)
			}
			if tc.want > 0 && (!res.HasBlocking() || res.Violations[0].SampleID != base.ID) {
				t.Fatalf("expected blocking violation on %s, got %+v", base.ID, res.Violations[0])
			}
		})
	}
}

func TestSampleConstraintsRuleExpandsFields(t *testing.T) {
	bad := validSample(" ")
	bad.ID = "C-002"
	bad.BulkDensity = 0
	bad.PH = -0.5
	res, err := NewSampleConstraintsRule().Evaluate(context.Background(), nil, []Change{
		{Action: ActionCreate, After: &bad},
		{Action: ActionDelete, Before: &bad},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := []string{
		"brand: brand is required",
		"bulk_density: must be greater than zero",
		"ph: must be non-negative",
	}
	if len(res.Violations) != len(want) {
		t.Fatalf("expected %d violations, got %+v", len(want), res.Violations)
	}
	for i, v := range res.Violations {
		if v.Message != want[i] || v.SampleID != "C-002" || v.Severity != SeverityBlock {
			t.Fatalf("violation %d: got %+v", i, v)
		}
	}
}
