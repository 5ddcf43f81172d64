package core

import (
	"fmt"

	"haccpcore/pkg/domain"
)

// StaticSchemaProvider serves a fixed in-process questionnaire. It backs the
// default English interview; deployments with localized or remote schemas
// supply their own SchemaProvider.
type StaticSchemaProvider struct {
	sections map[domain.Section]SectionSchema
}

// NewStaticSchemaProvider wraps a fixed schema set.
func NewStaticSchemaProvider(sections map[domain.Section]SectionSchema) *StaticSchemaProvider {
	return &StaticSchemaProvider{sections: sections}
}

// DefaultSchemaProvider returns the built-in English HACCP questionnaire.
func DefaultSchemaProvider() *StaticSchemaProvider {
	return NewStaticSchemaProvider(builtinSchema())
}

// Questions returns the descriptor list for the section. Locale is accepted
// for interface parity but the static provider only carries one language.
func (p *StaticSchemaProvider) Questions(section domain.Section, _ string) (SectionSchema, error) {
	schema, ok := p.sections[section]
	if !ok {
		return SectionSchema{}, fmt.Errorf("no schema for section %s", section)
	}
	return schema, nil
}

// CCPManagementTemplate returns the question group repeated per confirmed
// CCP by the ccp_management fan-out.
func CCPManagementTemplate() []Question {
	return []Question{
		{ID: "critical_limit", Type: QuestionText, Label: "Critical limit"},
		{ID: "monitoring", Type: QuestionTextarea, Label: "Monitoring procedure"},
		{ID: "monitoring_frequency", Type: QuestionText, Label: "Monitoring frequency"},
		{ID: "corrective_action", Type: QuestionTextarea, Label: "Corrective action"},
		{ID: "verification", Type: QuestionTextarea, Label: "Verification activities"},
		{ID: "records", Type: QuestionText, Label: "Records kept"},
	}
}

func builtinSchema() map[domain.Section]SectionSchema {
	return map[domain.Section]SectionSchema{
		domain.SectionProduct: {
			Section: domain.SectionProduct,
			Questions: []Question{
				{ID: "business_name", Type: QuestionText, Label: "Business name"},
				{ID: "product_name", Type: QuestionText, Label: "Product or menu description"},
				{ID: "product_type", Type: QuestionSelect, Label: "Product type",
					Options: []string{"Ready to eat", "Cooked to order", "Raw for further processing"}},
				{ID: "do_you_cook", Type: QuestionBoolean, Label: "Does your process include a cooking step?"},
				{ID: "intended_use", Type: QuestionTextarea, Label: "Intended use and consumer",
					ShowIf: &Condition{Question: "do_you_cook", Equals: true}},
				{ID: "storage_conditions", Type: QuestionSelect, Label: "Storage conditions",
					Options: []string{"Ambient", "Chilled", "Frozen"}},
			},
		},
		domain.SectionProcess: {
			Section: domain.SectionProcess,
			Questions: []Question{
				{ID: "steps", Type: QuestionList, Label: "Process steps in order", Questions: []Question{
					{ID: "step_id", Type: QuestionText},
					{ID: "step_name", Type: QuestionText, Label: "Step name"},
					{ID: "step_description", Type: QuestionTextarea, Label: "What happens at this step"},
				}},
			},
		},
		domain.SectionPRP: {
			Section: domain.SectionPRP,
			Questions: []Question{
				{ID: "cleaning_schedule", Type: QuestionBoolean, Label: "Documented cleaning schedule in place?"},
				{ID: "pest_control", Type: QuestionBoolean, Label: "Pest control program in place?"},
				{ID: "supplier_approval", Type: QuestionBoolean, Label: "Approved supplier list maintained?"},
				{ID: "staff_training", Type: QuestionBoolean, Label: "Food hygiene training records kept?"},
				{ID: "temperature_monitoring", Type: QuestionBoolean, Label: "Routine temperature monitoring?"},
			},
		},
		domain.SectionHazards: {
			Section: domain.SectionHazards,
			Questions: []Question{
				{ID: "evaluations", Type: QuestionPerHazardGroup, Label: "Hazard evaluation", Questions: []Question{
					{ID: "severity", Type: QuestionSelect, Label: "Severity", Options: []string{"low", "medium", "high"}},
					{ID: "likelihood", Type: QuestionSelect, Label: "Likelihood", Options: []string{"low", "medium", "high"}},
					{ID: "is_significant", Type: QuestionBoolean, Label: "Significant hazard?"},
					{ID: "control_measure", Type: QuestionTextarea, Label: "Control measure",
						ShowIf: &Condition{Question: "is_significant", Equals: true}},
				}},
			},
		},
		domain.SectionCCPDetermination: {
			Section: domain.SectionCCPDetermination,
			Questions: []Question{
				{ID: "q1_control_measure", Type: QuestionBoolean, Label: "Q1: Do control measures exist for the hazard at this step?"},
				{ID: "q2_step_designed_to_eliminate", Type: QuestionBoolean, Label: "Q2: Is this step specifically designed to eliminate the hazard or reduce it to an acceptable level?",
					ShowIf: &Condition{Question: "q1_control_measure", Equals: true}},
				{ID: "q3_contamination_possible", Type: QuestionBoolean, Label: "Q3: Could contamination occur at or increase to unacceptable levels?",
					ShowIf: &Condition{Question: "q2_step_designed_to_eliminate", Equals: false}},
				{ID: "q4_subsequent_step", Type: QuestionBoolean, Label: "Q4: Will a subsequent step eliminate the hazard or reduce it to an acceptable level?",
					ShowIf: &Condition{Question: "q3_contamination_possible", Equals: true}},
				{ID: "justification", Type: QuestionTextarea, Label: "Justification"},
			},
		},
		domain.SectionCCPManagement: {
			// Served as a template; the controller fans it out per CCP.
			Section:   domain.SectionCCPManagement,
			Questions: CCPManagementTemplate(),
		},
		domain.SectionValidation: {
			Section: domain.SectionValidation,
			Questions: []Question{
				{ID: "confirmed", Type: QuestionBoolean, Label: "I confirm the captured answers are accurate"},
				{ID: "review_notes", Type: QuestionTextarea, Label: "Notes for the reviewer"},
			},
		},
	}
}
