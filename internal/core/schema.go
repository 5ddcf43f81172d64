package core

import (
	"fmt"

	"haccpcore/pkg/domain"
)

// QuestionType tags a node of the question tree.
type QuestionType string

// Supported question node types. Leaf types render a single widget; Group
// nests children; PerHazardGroup repeats its children once per hazard
// category.
const (
	QuestionText     QuestionType = "text"
	QuestionTextarea QuestionType = "textarea"
	QuestionSelect   QuestionType = "select"
	QuestionBoolean  QuestionType = "boolean"
	QuestionList     QuestionType = "list"
	QuestionGroup    QuestionType = "group"
	// QuestionPerHazardGroup fans its children out per hazard category.
	QuestionPerHazardGroup QuestionType = "per_hazard_group"
)

// Condition gates a question's visibility on an earlier answer.
type Condition struct {
	Question string `json:"question"`
	Equals   any    `json:"equals"`
}

// Question is one node of the tagged schema tree.
type Question struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Label     string       `json:"label,omitempty"`
	Options   []string     `json:"options,omitempty"`
	ShowIf    *Condition   `json:"show_if,omitempty"`
	Questions []Question   `json:"questions,omitempty"`
}

// SectionSchema is the ordered question list for one interview section.
type SectionSchema struct {
	Section   domain.Section `json:"section"`
	Questions []Question     `json:"questions"`
}

// SchemaProvider supplies question descriptors per section. Pure lookup.
type SchemaProvider interface {
	Questions(section domain.Section, locale string) (SectionSchema, error)
}

// Visible evaluates a question's show_if condition against the section's
// answers so far. Questions without a condition are always visible.
func Visible(q Question, answers domain.AnswerPayload) bool {
	if q.ShowIf == nil {
		return true
	}
	return answers[q.ShowIf.Question] == q.ShowIf.Equals
}

// FlattenVisible walks the question tree recursively and returns the visible
// leaf questions in render order. PerHazardGroup nodes expand into one group
// per hazard category, children prefixed with the category key.
func FlattenVisible(questions []Question, answers domain.AnswerPayload) []Question {
	var out []Question
	for _, q := range questions {
		if !Visible(q, answers) {
			continue
		}
		switch q.Type {
		case QuestionGroup:
			out = append(out, FlattenVisible(q.Questions, answers)...)
		case QuestionPerHazardGroup:
			for _, hazardType := range domain.HazardTypes() {
				for _, child := range FlattenVisible(q.Questions, answers) {
					child.ID = string(hazardType) + "." + child.ID
					out = append(out, child)
				}
			}
		default:
			out = append(out, q)
		}
	}
	return out
}

// FanOutCCPGroups builds the dynamic ccp_management schema: one repeated
// question group per confirmed CCP, keyed by the deterministic group key.
// Duplicate keys after sanitization get an ordinal suffix.
func FanOutCCPGroups(template []Question, decisions []domain.CCPDecision) SectionSchema {
	seen := make(map[domain.GroupKey]int)
	schema := SectionSchema{Section: domain.SectionCCPManagement}
	for _, decision := range decisions {
		if !decision.IsCCP {
			continue
		}
		key := domain.NewGroupKey(decision.StepName, decision.Hazard)
		key = key.WithOrdinal(seen[key])
		seen[domain.NewGroupKey(decision.StepName, decision.Hazard)]++
		schema.Questions = append(schema.Questions, Question{
			ID:        string(key),
			Type:      QuestionGroup,
			Label:     fmt.Sprintf("%s / %s", decision.StepName, decision.Hazard),
			Questions: template,
		})
	}
	return schema
}

// ManagementEntriesFromPayload projects the flat per-group ccp_management
// answers back into management entries, one per confirmed CCP in decision
// order. Groups without answers yield entries with empty fields so the
// pairing with the CCP list stays intact.
func ManagementEntriesFromPayload(payload domain.AnswerPayload, decisions []domain.CCPDecision) []domain.CCPManagementEntry {
	seen := make(map[domain.GroupKey]int)
	var out []domain.CCPManagementEntry
	for _, decision := range decisions {
		if !decision.IsCCP {
			continue
		}
		key := domain.NewGroupKey(decision.StepName, decision.Hazard)
		key = key.WithOrdinal(seen[key])
		seen[domain.NewGroupKey(decision.StepName, decision.Hazard)]++

		entry := domain.CCPManagementEntry{
			Key:      key,
			StepName: decision.StepName,
			Hazard:   decision.Hazard,
		}
		if raw, ok := payload[string(key)]; ok {
			if fields, ok := raw.(map[string]any); ok {
				entry.Fields = domain.AnswerPayload(fields).Clone()
			}
		}
		out = append(out, entry)
	}
	return out
}
