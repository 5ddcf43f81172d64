package core

import "haccpcore/pkg/domain"

// SignificantHazards flattens the accumulated per-step hazard analyses into
// the ordered significant-hazard list. Output order is deterministic: step
// order then canonical hazard-category order. Step names are resolved
// against the process step list, falling back to the raw step ID when the
// step is unknown.
func SignificantHazards(analyses []domain.StepHazardAnalysis, steps []domain.ProcessStep) []domain.SignificantHazard {
	names := make(map[string]string, len(steps))
	for _, step := range steps {
		names[step.ID] = step.Name
	}

	var out []domain.SignificantHazard
	for _, analysis := range analyses {
		stepName, ok := names[analysis.StepID]
		if !ok || stepName == "" {
			stepName = analysis.StepID
		}
		for _, hazardType := range domain.HazardTypes() {
			eval, ok := analysis.Evaluations[hazardType]
			if !ok || !eval.Significant {
				continue
			}
			out = append(out, domain.SignificantHazard{
				StepName:       stepName,
				Hazard:         hazardType.DisplayName(),
				Type:           hazardType,
				Severity:       eval.Severity,
				Likelihood:     eval.Likelihood,
				ControlMeasure: eval.ControlMeasure,
			})
		}
	}
	return out
}
