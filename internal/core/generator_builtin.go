package core

import (
	"context"
	"fmt"
	"time"

	"haccpcore/pkg/domain"
)

// TemplatePlanGenerator is the built-in PlanGenerator. It assembles the plan
// document deterministically from the answer tree, section by section.
// Deployments with an external generation service replace it through the
// PlanGenerator interface.
type TemplatePlanGenerator struct {
	now func() time.Time
}

// NewTemplatePlanGenerator returns the built-in generator.
func NewTemplatePlanGenerator() *TemplatePlanGenerator {
	return &TemplatePlanGenerator{now: func() time.Time { return time.Now().UTC() }}
}

// GeneratePlan folds the answer tree into the analysis and full plan
// payloads. Answers must contain at least the product section; generating
// from an empty tree is an error.
func (g *TemplatePlanGenerator) GeneratePlan(_ context.Context, answers domain.AnswerTree) (domain.GeneratedPlan, error) {
	if len(answers[domain.SectionProduct]) == 0 {
		return domain.GeneratedPlan{}, fmt.Errorf("generate plan: product section answers missing")
	}
	full := domain.AnswerPayload{}
	for _, section := range domain.AllSections() {
		if payload, ok := answers[section]; ok && len(payload) > 0 {
			full[string(section)] = payload.Clone()
		}
	}
	analysis := domain.AnswerPayload{
		"sections_answered": len(full),
		"generated_at":      g.now().Format(time.RFC3339),
	}
	return domain.GeneratedPlan{Analysis: analysis, FullPlan: full}, nil
}

// ReviewPlan checks the generated content for structural gaps. Missing
// sections surface as issues; the report passes when none are found.
func (g *TemplatePlanGenerator) ReviewPlan(_ context.Context, generated domain.GeneratedPlan) (domain.ValidationReport, error) {
	report := domain.ValidationReport{Passed: true, ReviewedAt: g.now()}
	for _, section := range []domain.Section{domain.SectionProduct, domain.SectionProcess, domain.SectionPRP} {
		if _, ok := generated.FullPlan[string(section)]; !ok {
			report.Issues = append(report.Issues, fmt.Sprintf("section %s missing from plan", section))
		}
	}
	if len(report.Issues) > 0 {
		report.Passed = false
		report.Summary = fmt.Sprintf("%d structural issues found", len(report.Issues))
		return report, nil
	}
	report.Summary = "plan structure complete"
	return report, nil
}
