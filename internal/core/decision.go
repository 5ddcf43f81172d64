package core

import "haccpcore/pkg/domain"

// EvaluateCCP classifies a significant hazard's step as a critical control
// point using the four-question Codex Alimentarius decision tree:
//
//	Q1: does a control measure exist at this step? No -> not a CCP.
//	Q2: is the step itself designed to eliminate the hazard? Yes -> CCP.
//	Q3: could contamination occur or increase here?
//	Q4: will a subsequent step eliminate or reduce the hazard?
//
// Under Q2=no, the step is a CCP exactly when contamination is possible
// (Q3=yes) and no later step handles it (Q4=no). Unanswered questions
// behave as "no". The function is total and order-independent for fixed
// inputs.
func EvaluateCCP(answers domain.CCPAnswers) bool {
	if !boolValue(answers.Q1ControlMeasure) {
		return false
	}
	if boolValue(answers.Q2DesignedToEliminate) {
		return true
	}
	if boolValue(answers.Q3ContaminationPossible) && !boolValue(answers.Q4SubsequentStep) {
		return true
	}
	return false
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
