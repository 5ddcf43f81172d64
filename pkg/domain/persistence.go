package domain

import (
	"context"
	"fmt"
)

// DraftPatch carries a partial update for a draft. Nil fields are left
// untouched; the autosaver always sends the latest full answer tree.
type DraftPatch struct {
	Answers    AnswerTree
	Validation *ValidationReport
}

// SavePlanInput bundles everything needed to promote a draft into a plan.
type SavePlanInput struct {
	DraftID    string
	UserID     string
	Answers    AnswerTree
	Generated  GeneratedPlan
	Validation *ValidationReport
	Metadata   map[string]string
}

// DraftStore persists in-progress interview drafts.
type DraftStore interface {
	CreateDraft(ctx context.Context) (Draft, error)
	GetDraft(ctx context.Context, id string) (Draft, error)
	PatchDraft(ctx context.Context, id string, patch DraftPatch) error
	AttachDraftToUser(ctx context.Context, draftID, userID string) error
}

// PlanStore persists promoted, billable plans.
type PlanStore interface {
	GetPlan(ctx context.Context, id string) (Plan, error)
	SavePlan(ctx context.Context, input SavePlanInput) (Plan, error)
}

// Store is the combined persistence contract implemented by the concrete
// backends: drafts and plans share one store so promotion can span both.
type Store interface {
	DraftStore
	PlanStore
}

// ErrNotFound is returned when a draft or plan lookup misses.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
