package core

import (
	"fmt"
	"strings"

	"haccpcore/pkg/domain"
)

// processStepsFromPayload extracts the ordered process step list from the
// process section's answers. Steps missing an ID are assigned a positional
// one so downstream lookups stay stable.
func processStepsFromPayload(payload domain.AnswerPayload) []domain.ProcessStep {
	raw, ok := payload["steps"]
	if !ok {
		return nil
	}
	var out []domain.ProcessStep
	switch items := raw.(type) {
	case []domain.ProcessStep:
		out = append(out, items...)
	case []any:
		for _, item := range items {
			switch v := item.(type) {
			case domain.ProcessStep:
				out = append(out, v)
			case map[string]any:
				out = append(out, domain.ProcessStep{
					ID:          stringValue(v["step_id"]),
					Name:        stringValue(v["step_name"]),
					Description: stringValue(v["step_description"]),
				})
			}
		}
	}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = fmt.Sprintf("step_%d", i+1)
		}
	}
	return out
}

// hazardEvaluationsFromPayload reads the per-category evaluation sub-records
// for one step. Categories are read from top-level keys; an "evaluations"
// wrapper map is also accepted.
func hazardEvaluationsFromPayload(payload domain.AnswerPayload) map[domain.HazardType]domain.HazardEvaluation {
	source := map[string]any(payload)
	if wrapped, ok := payload["evaluations"].(map[string]any); ok {
		source = wrapped
	}
	out := make(map[domain.HazardType]domain.HazardEvaluation)
	for _, hazardType := range domain.HazardTypes() {
		raw, ok := source[string(hazardType)]
		if !ok {
			continue
		}
		record, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out[hazardType] = domain.HazardEvaluation{
			Severity:       stringValue(record["severity"]),
			Likelihood:     stringValue(record["likelihood"]),
			Significant:    boolOrFalse(record["is_significant"]),
			ControlMeasure: stringValue(record["control_measure"]),
		}
	}
	return out
}

// ccpAnswersFromPayload reads the four decision-tree answers. Absent or
// malformed answers stay nil and compare as "no".
func ccpAnswersFromPayload(payload domain.AnswerPayload) domain.CCPAnswers {
	return domain.CCPAnswers{
		Q1ControlMeasure:        optionalBool(payload["q1_control_measure"]),
		Q2DesignedToEliminate:   optionalBool(payload["q2_step_designed_to_eliminate"]),
		Q3ContaminationPossible: optionalBool(payload["q3_contamination_possible"]),
		Q4SubsequentStep:        optionalBool(payload["q4_subsequent_step"]),
		Justification:           stringValue(payload["justification"]),
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func boolOrFalse(v any) bool {
	b := optionalBool(v)
	return b != nil && *b
}

// optionalBool accepts native booleans plus the yes/no strings the legacy
// questionnaire widgets submit.
func optionalBool(v any) *bool {
	switch val := v.(type) {
	case bool:
		b := val
		return &b
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "yes", "true":
			b := true
			return &b
		case "no", "false":
			b := false
			return &b
		}
	}
	return nil
}
