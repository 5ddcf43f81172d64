package core

import (
	"context"

	"haccpcore/pkg/domain"
)

// ProcessStepsRule blocks entry into the hazard analysis loop when the
// process section produced no steps. The controller redirects the operator
// back to the process section when this rule fires.
type ProcessStepsRule struct{}

// NewProcessStepsRule constructs the built-in process step requirement rule.
func NewProcessStepsRule() ProcessStepsRule { return ProcessStepsRule{} }

// Name identifies the rule in violation reports.
func (ProcessStepsRule) Name() string { return "process_steps_required" }

// Evaluate fires only when the PRP section completes, since that is the
// transition that enters the hazards loop.
func (r ProcessStepsRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	relevant := false
	for _, change := range changes {
		if change.Section == domain.SectionPRP {
			relevant = true
			break
		}
	}
	if !relevant || len(view.ProcessSteps()) > 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  "at least one process step is required before hazard analysis",
		Section:  domain.SectionProcess,
	}}}, nil
}
