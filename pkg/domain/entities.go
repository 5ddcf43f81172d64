// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by haccpcore.
package domain

import (
	"time"
)

// Section identifies a stage of the authoring interview. Sections are
// ordered; the flow controller walks them front to back, looping inside
// SectionHazards, SectionCCPDetermination and SectionCCPManagement.
type Section string

// Canonical interview sections in flow order.
const (
	// SectionProduct collects product description answers.
	SectionProduct Section = "product"
	// SectionProcess collects the ordered process step list.
	SectionProcess Section = "process"
	// SectionPRP collects prerequisite program answers.
	SectionPRP Section = "prp"
	// SectionHazards loops over process steps collecting hazard evaluations.
	SectionHazards Section = "hazards"
	// SectionCCPDetermination loops over significant hazards running the decision tree.
	SectionCCPDetermination Section = "ccp_determination"
	// SectionCCPManagement collects management details for confirmed CCPs.
	SectionCCPManagement Section = "ccp_management"
	// SectionValidation reviews the assembled answers before generation.
	SectionValidation Section = "validation"
	// SectionGenerating marks an in-flight plan generation call.
	SectionGenerating Section = "generating"
	// SectionComplete marks a finished interview.
	SectionComplete Section = "complete"
)

// AllSections returns every section in flow order.
func AllSections() []Section {
	return []Section{
		SectionProduct,
		SectionProcess,
		SectionPRP,
		SectionHazards,
		SectionCCPDetermination,
		SectionCCPManagement,
		SectionValidation,
		SectionGenerating,
		SectionComplete,
	}
}

// Index returns the position of the section in flow order, or -1 when unknown.
func (s Section) Index() int {
	for i, candidate := range AllSections() {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Valid reports whether the section is a known interview section.
func (s Section) Valid() bool { return s.Index() >= 0 }

// HazardType enumerates the fixed hazard categories evaluated per process step.
type HazardType string

// Hazard categories in canonical evaluation order.
const (
	HazardBiological HazardType = "bio"
	HazardChemical   HazardType = "chem"
	HazardPhysical   HazardType = "phys"
	HazardAllergen   HazardType = "allergen"
)

// HazardTypes returns the hazard categories in canonical order. The order is
// load-bearing: it fixes the pairing between significant hazards and the
// CCP determination loop.
func HazardTypes() []HazardType {
	return []HazardType{HazardBiological, HazardChemical, HazardPhysical, HazardAllergen}
}

// DisplayName returns the human-readable hazard category label.
func (h HazardType) DisplayName() string {
	switch h {
	case HazardBiological:
		return "Biological"
	case HazardChemical:
		return "Chemical"
	case HazardPhysical:
		return "Physical"
	case HazardAllergen:
		return "Allergen"
	default:
		return string(h)
	}
}

// AnswerPayload holds one section's answers keyed by question ID. Values may
// be scalars, lists, or nested maps for grouped question types.
type AnswerPayload map[string]any

// Clone returns a deep copy of the payload.
func (p AnswerPayload) Clone() AnswerPayload {
	if p == nil {
		return nil
	}
	out := make(AnswerPayload, len(p))
	for k, v := range p {
		out[k] = deepCopyValue(v)
	}
	return out
}

// AnswerTree maps each completed section to its answer payload. It grows
// monotonically as sections complete; a section's payload is only replaced by
// re-entering that exact section.
type AnswerTree map[Section]AnswerPayload

// Clone returns a deep copy of the tree.
func (t AnswerTree) Clone() AnswerTree {
	if t == nil {
		return nil
	}
	out := make(AnswerTree, len(t))
	for section, payload := range t {
		out[section] = payload.Clone()
	}
	return out
}

// Merge atomically folds payload into the tree under section. Existing keys
// for the section are overwritten key-wise; other sections are untouched.
func (t AnswerTree) Merge(section Section, payload AnswerPayload) {
	if len(payload) == 0 {
		return
	}
	existing, ok := t[section]
	if !ok {
		t[section] = payload.Clone()
		return
	}
	for k, v := range payload {
		existing[k] = deepCopyValue(v)
	}
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopyValue(item)
		}
		return out
	case AnswerPayload:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}

// ProcessStep is one ordered step of the production process. Step order
// drives the hazard analysis loop order.
type ProcessStep struct {
	ID          string `json:"step_id"`
	Name        string `json:"step_name"`
	Description string `json:"step_description,omitempty"`
}

// HazardEvaluation captures one hazard category assessment at one step.
type HazardEvaluation struct {
	Severity       string `json:"severity"`
	Likelihood     string `json:"likelihood"`
	Significant    bool   `json:"is_significant"`
	ControlMeasure string `json:"control_measure,omitempty"`
}

// Evaluated reports whether the record carries an actual assessment.
func (e HazardEvaluation) Evaluated() bool {
	return e.Severity != "" || e.Likelihood != ""
}

// StepHazardAnalysis holds the hazard evaluations submitted for one process
// step, keyed by hazard category.
type StepHazardAnalysis struct {
	StepID      string                          `json:"step_id"`
	Evaluations map[HazardType]HazardEvaluation `json:"evaluations"`
}

// SignificantHazard is a derived record: one per (step, hazard category)
// pair whose evaluation was marked significant. Not persisted; recomputed
// from the hazard analyses.
type SignificantHazard struct {
	StepName       string     `json:"step_name"`
	Hazard         string     `json:"hazards"`
	Type           HazardType `json:"hazard_type"`
	Severity       string     `json:"severity"`
	Likelihood     string     `json:"likelihood"`
	ControlMeasure string     `json:"control_measure,omitempty"`
}

// CCPAnswers holds the four Codex decision-tree answers for one significant
// hazard. Unanswered questions are nil and compare as false.
type CCPAnswers struct {
	Q1ControlMeasure        *bool  `json:"q1_control_measure,omitempty"`
	Q2DesignedToEliminate   *bool  `json:"q2_step_designed_to_eliminate,omitempty"`
	Q3ContaminationPossible *bool  `json:"q3_contamination_possible,omitempty"`
	Q4SubsequentStep        *bool  `json:"q4_subsequent_step,omitempty"`
	Justification           string `json:"justification,omitempty"`
}

// CCPDecision records the decision-tree outcome for one significant hazard.
// Immutable once the loop for that hazard has advanced.
type CCPDecision struct {
	StepName string     `json:"step_name"`
	Hazard   string     `json:"hazard"`
	IsCCP    bool       `json:"is_ccp"`
	Answers  CCPAnswers `json:"answers"`
}

// CCPManagementEntry holds the management details captured for one confirmed
// CCP, keyed by the deterministic group key.
type CCPManagementEntry struct {
	Key      GroupKey      `json:"key"`
	StepName string        `json:"step_name"`
	Hazard   string        `json:"hazard"`
	Fields   AnswerPayload `json:"fields"`
}

// NavigationState is the controller's resumable position: current section,
// loop indices, and the back-navigation history.
type NavigationState struct {
	Current   Section `json:"current_section"`
	StepIndex int     `json:"current_step_index"`
	CCPIndex  int     `json:"current_ccp_index"`
	History   []int   `json:"history_stack"`
}

// ValidationReport summarizes the advanced review of a generated plan.
type ValidationReport struct {
	Passed     bool      `json:"passed"`
	Summary    string    `json:"summary,omitempty"`
	Issues     []string  `json:"issues,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// GeneratedPlan carries the output of the external plan generation call.
type GeneratedPlan struct {
	Analysis AnswerPayload `json:"analysis,omitempty"`
	FullPlan AnswerPayload `json:"full_plan"`
}

// PaymentStatus enumerates billing states attached to a promoted plan.
type PaymentStatus string

// Canonical payment statuses reported by the plan store.
const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Base carries the shared persistence metadata for stored records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Draft is an ephemeral, pre-payment interview record. Drafts may be
// anonymous until attached to a user.
type Draft struct {
	Base
	Answers    AnswerTree        `json:"answers"`
	Validation *ValidationReport `json:"validation,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
}

// PlanContent bundles the generated document with the answers it was built from.
type PlanContent struct {
	Answers   AnswerTree    `json:"answers"`
	Generated GeneratedPlan `json:"generated"`
}

// Plan is the persisted, billable artifact created by promoting a draft
// exactly once.
type Plan struct {
	Base
	DraftID       string            `json:"draft_id"`
	UserID        string            `json:"user_id,omitempty"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	FullPlan      PlanContent       `json:"full_plan"`
	Validation    *ValidationReport `json:"validation,omitempty"`
}
