package core

import (
	"strings"
	"testing"

	"haccpcore/pkg/domain"
)

func TestVisibleShowIf(t *testing.T) {
	q := Question{ID: "detail", Type: QuestionText, ShowIf: &Condition{Question: "has_detail", Equals: true}}
	if Visible(q, domain.AnswerPayload{"has_detail": false}) {
		t.Fatalf("question must be hidden when the condition fails")
	}
	if !Visible(q, domain.AnswerPayload{"has_detail": true}) {
		t.Fatalf("question must be visible when the condition holds")
	}
	if Visible(q, domain.AnswerPayload{}) {
		t.Fatalf("question must be hidden when the gating answer is absent")
	}
	if !Visible(Question{ID: "plain", Type: QuestionText}, nil) {
		t.Fatalf("unconditional questions are always visible")
	}
}

func TestFlattenVisibleRecursesGroups(t *testing.T) {
	questions := []Question{
		{ID: "name", Type: QuestionText},
		{
			ID:   "details",
			Type: QuestionGroup,
			Questions: []Question{
				{ID: "inner", Type: QuestionText},
				{ID: "gated", Type: QuestionText, ShowIf: &Condition{Question: "flag", Equals: "yes"}},
			},
		},
	}
	flat := FlattenVisible(questions, domain.AnswerPayload{"flag": "no"})
	if len(flat) != 2 {
		t.Fatalf("expected name and inner, got %d questions", len(flat))
	}
	if flat[0].ID != "name" || flat[1].ID != "inner" {
		t.Fatalf("unexpected flatten order: %v", flat)
	}
}

func TestFlattenVisiblePerHazardGroup(t *testing.T) {
	questions := []Question{
		{
			ID:   "hazard_eval",
			Type: QuestionPerHazardGroup,
			Questions: []Question{
				{ID: "severity", Type: QuestionSelect},
			},
		},
	}
	flat := FlattenVisible(questions, nil)
	if len(flat) != len(domain.HazardTypes()) {
		t.Fatalf("expected one copy per hazard category, got %d", len(flat))
	}
	if flat[0].ID != "bio.severity" {
		t.Fatalf("first expanded ID = %q, want bio.severity", flat[0].ID)
	}
	if flat[3].ID != "allergen.severity" {
		t.Fatalf("last expanded ID = %q, want allergen.severity", flat[3].ID)
	}
}

func TestFanOutCCPGroups(t *testing.T) {
	decisions := []domain.CCPDecision{
		{StepName: "Cooking", Hazard: "Biological", IsCCP: true},
		{StepName: "Storage", Hazard: "Chemical", IsCCP: false},
		{StepName: "Cooking", Hazard: "Biological", IsCCP: true}, // duplicate pair
	}
	schema := FanOutCCPGroups(CCPManagementTemplate(), decisions)
	if schema.Section != domain.SectionCCPManagement {
		t.Fatalf("schema section = %s", schema.Section)
	}
	if len(schema.Questions) != 2 {
		t.Fatalf("one group per confirmed CCP, got %d", len(schema.Questions))
	}
	if schema.Questions[0].ID != "cooking_biological" {
		t.Fatalf("first group ID = %q", schema.Questions[0].ID)
	}
	if schema.Questions[1].ID != "cooking_biological_2" {
		t.Fatalf("duplicate pair must get an ordinal suffix, got %q", schema.Questions[1].ID)
	}
	for _, group := range schema.Questions {
		if group.Type != QuestionGroup {
			t.Fatalf("fan-out nodes must be groups, got %s", group.Type)
		}
		if len(group.Questions) == 0 {
			t.Fatalf("groups must carry the management template")
		}
	}
}

func TestManagementEntriesFromPayload(t *testing.T) {
	decisions := []domain.CCPDecision{
		{StepName: "Cooking", Hazard: "Biological", IsCCP: true},
		{StepName: "Chilling", Hazard: "Biological", IsCCP: true},
	}
	payload := domain.AnswerPayload{
		"cooking_biological": map[string]any{"critical_limit": "75C"},
		// chilling_biological left unanswered
	}
	entries := ManagementEntriesFromPayload(payload, decisions)
	if len(entries) != 2 {
		t.Fatalf("one entry per confirmed CCP, got %d", len(entries))
	}
	if entries[0].Fields["critical_limit"] != "75C" {
		t.Fatalf("answered group fields missing: %+v", entries[0])
	}
	if len(entries[1].Fields) != 0 {
		t.Fatalf("unanswered groups must yield empty fields, got %+v", entries[1].Fields)
	}
	if entries[1].Key != "chilling_biological" {
		t.Fatalf("entry key = %q", entries[1].Key)
	}
}

func TestDefaultSchemaProviderCoversAuthoringSections(t *testing.T) {
	provider := DefaultSchemaProvider()
	for _, section := range []domain.Section{
		domain.SectionProduct,
		domain.SectionProcess,
		domain.SectionPRP,
		domain.SectionHazards,
		domain.SectionCCPDetermination,
		domain.SectionCCPManagement,
		domain.SectionValidation,
	} {
		schema, err := provider.Questions(section, "")
		if err != nil {
			t.Fatalf("questions for %s: %v", section, err)
		}
		if len(schema.Questions) == 0 {
			t.Fatalf("section %s has no questions", section)
		}
	}
	if _, err := provider.Questions(domain.SectionGenerating, ""); err == nil {
		t.Fatalf("transient sections must have no schema")
	}
}

func TestCCPManagementTemplateFieldIDs(t *testing.T) {
	template := CCPManagementTemplate()
	joined := make([]string, 0, len(template))
	for _, q := range template {
		joined = append(joined, q.ID)
	}
	all := strings.Join(joined, ",")
	for _, want := range []string{"critical_limit", "monitoring", "corrective_action", "verification", "records"} {
		if !strings.Contains(all, want) {
			t.Fatalf("management template missing %q field (have %s)", want, all)
		}
	}
}
