package core

import (
	"context"
	"fmt"

	"haccpcore/pkg/domain"
)

// DefaultUniformRiskMinEvaluations is the minimum number of evaluated hazard
// records before the uniform risk heuristic applies.
const DefaultUniformRiskMinEvaluations = 3

// UniformRiskRule flags hazard analyses whose evaluated records all share an
// identical severity/likelihood pair, a signal that risk scoring may have
// been copy-pasted rather than assessed per hazard. Advisory only; it never
// blocks progression. Thresholds are configurable because the heuristic is
// not a formal policy.
type UniformRiskRule struct {
	// MinEvaluations is the number of evaluated records required before the
	// heuristic applies. Zero means DefaultUniformRiskMinEvaluations.
	MinEvaluations int
}

// NewUniformRiskRule constructs the detector with default thresholds.
func NewUniformRiskRule() UniformRiskRule { return UniformRiskRule{} }

// Name identifies the rule in violation reports.
func (UniformRiskRule) Name() string { return "uniform_risk_scoring" }

// Evaluate scans all evaluated hazard records across all steps.
func (r UniformRiskRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	min := r.MinEvaluations
	if min <= 0 {
		min = DefaultUniformRiskMinEvaluations
	}

	type pair struct{ severity, likelihood string }
	var (
		count int
		first pair
	)
	uniform := true
	for _, analysis := range view.HazardAnalyses() {
		for _, hazardType := range domain.HazardTypes() {
			eval, ok := analysis.Evaluations[hazardType]
			if !ok || !eval.Evaluated() {
				continue
			}
			p := pair{eval.Severity, eval.Likelihood}
			if count == 0 {
				first = p
			} else if p != first {
				uniform = false
			}
			count++
		}
	}
	if count < min || !uniform {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     r.Name(),
		Severity: domain.SeverityWarn,
		Message: fmt.Sprintf("all %d hazard evaluations share severity %q and likelihood %q; review whether risks were assessed individually",
			count, first.severity, first.likelihood),
		Section: domain.SectionHazards,
	}}}, nil
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewProcessStepsRule())
	engine.Register(NewUniformRiskRule())
	return engine
}
