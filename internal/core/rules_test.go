package core

import (
	"context"
	"testing"

	"haccpcore/pkg/domain"
)

func uniformAnalyses(n int, severity, likelihood string) []domain.StepHazardAnalysis {
	var out []domain.StepHazardAnalysis
	for i := 0; i < n; i++ {
		out = append(out, domain.StepHazardAnalysis{
			StepID: "s",
			Evaluations: map[domain.HazardType]domain.HazardEvaluation{
				domain.HazardBiological: {Severity: severity, Likelihood: likelihood},
			},
		})
	}
	return out
}

func TestUniformRiskRuleWarnsOnIdenticalScores(t *testing.T) {
	view := controllerView{analyses: uniformAnalyses(3, "medium", "low")}
	result, err := NewUniformRiskRule().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 1 {
		t.Fatalf("expected one violation, got %d", len(result.Violations))
	}
	v := result.Violations[0]
	if v.Severity != domain.SeverityWarn {
		t.Fatalf("severity = %s, want warn", v.Severity)
	}
	if v.Rule != "uniform_risk_scoring" {
		t.Fatalf("rule name = %q", v.Rule)
	}
}

func TestUniformRiskRuleBelowThreshold(t *testing.T) {
	view := controllerView{analyses: uniformAnalyses(2, "medium", "low")}
	result, err := NewUniformRiskRule().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("expected no violations below threshold, got %d", len(result.Violations))
	}
}

func TestUniformRiskRuleVariedScores(t *testing.T) {
	analyses := uniformAnalyses(2, "medium", "low")
	analyses = append(analyses, domain.StepHazardAnalysis{
		StepID: "s",
		Evaluations: map[domain.HazardType]domain.HazardEvaluation{
			domain.HazardBiological: {Severity: "high", Likelihood: "high"},
		},
	})
	result, err := NewUniformRiskRule().Evaluate(context.Background(), controllerView{analyses: analyses}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("varied scores must not warn, got %d violations", len(result.Violations))
	}
}

func TestUniformRiskRuleIgnoresUnevaluatedRecords(t *testing.T) {
	analyses := uniformAnalyses(3, "medium", "low")
	analyses = append(analyses, domain.StepHazardAnalysis{
		StepID: "s",
		Evaluations: map[domain.HazardType]domain.HazardEvaluation{
			domain.HazardChemical: {}, // no severity or likelihood entered
		},
	})
	result, err := NewUniformRiskRule().Evaluate(context.Background(), controllerView{analyses: analyses}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 1 {
		t.Fatalf("unevaluated records must not break uniformity, got %d violations", len(result.Violations))
	}
}

func TestUniformRiskRuleCustomThreshold(t *testing.T) {
	rule := UniformRiskRule{MinEvaluations: 5}
	view := controllerView{analyses: uniformAnalyses(4, "medium", "low")}
	result, err := rule.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("expected custom threshold to suppress warning")
	}
}

func TestProcessStepsRuleBlocksOnEmptySteps(t *testing.T) {
	changes := []domain.Change{{Section: domain.SectionPRP, Action: domain.ActionComplete}}
	result, err := NewProcessStepsRule().Evaluate(context.Background(), controllerView{}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation for empty step list")
	}
	if result.Violations[0].Section != domain.SectionProcess {
		t.Fatalf("violation should point at the process section, got %s", result.Violations[0].Section)
	}
}

func TestProcessStepsRuleQuietWithSteps(t *testing.T) {
	view := controllerView{steps: []domain.ProcessStep{{ID: "s1", Name: "Cooking"}}}
	changes := []domain.Change{{Section: domain.SectionPRP, Action: domain.ActionComplete}}
	result, err := NewProcessStepsRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("expected no violations, got %d", len(result.Violations))
	}
}

func TestProcessStepsRuleOnlyFiresOnPRP(t *testing.T) {
	changes := []domain.Change{{Section: domain.SectionProduct, Action: domain.ActionComplete}}
	result, err := NewProcessStepsRule().Evaluate(context.Background(), controllerView{}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("rule must only evaluate on the PRP transition")
	}
}
