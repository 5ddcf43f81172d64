package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"haccpcore/pkg/domain"
)

func TestCreateAndGetDraft(t *testing.T) {
	store := NewStore()
	draft, err := store.CreateDraft(context.Background())
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if draft.ID == "" {
		t.Fatalf("draft ID missing")
	}
	if draft.Answers == nil {
		t.Fatalf("new drafts must start with an empty answer tree")
	}

	got, err := store.GetDraft(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if got.ID != draft.ID {
		t.Fatalf("draft mismatch: %s vs %s", got.ID, draft.ID)
	}
}

func TestGetDraftNotFound(t *testing.T) {
	store := NewStore()
	_, err := store.GetDraft(context.Background(), "missing")
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if nf.Kind != "draft" || nf.ID != "missing" {
		t.Fatalf("unexpected not-found detail: %+v", nf)
	}
}

func TestPatchDraftReplacesAnswers(t *testing.T) {
	store := NewStore()
	draft, _ := store.CreateDraft(context.Background())

	answers := domain.AnswerTree{
		domain.SectionProduct: {"product_name": "Soup"},
	}
	if err := store.PatchDraft(context.Background(), draft.ID, domain.DraftPatch{Answers: answers}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	got, _ := store.GetDraft(context.Background(), draft.ID)
	if got.Answers[domain.SectionProduct]["product_name"] != "Soup" {
		t.Fatalf("answers not stored: %v", got.Answers)
	}

	// A second patch with only Validation leaves answers alone.
	report := domain.ValidationReport{Passed: true, ReviewedAt: time.Now().UTC()}
	if err := store.PatchDraft(context.Background(), draft.ID, domain.DraftPatch{Validation: &report}); err != nil {
		t.Fatalf("patch validation: %v", err)
	}
	got, _ = store.GetDraft(context.Background(), draft.ID)
	if got.Answers[domain.SectionProduct]["product_name"] != "Soup" {
		t.Fatalf("nil Answers patch must not touch stored answers")
	}
	if got.Validation == nil || !got.Validation.Passed {
		t.Fatalf("validation not stored: %+v", got.Validation)
	}
}

func TestPatchDraftBumpsUpdatedAt(t *testing.T) {
	store := NewStore()
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	draft, _ := store.CreateDraft(context.Background())
	current = current.Add(time.Minute)
	if err := store.PatchDraft(context.Background(), draft.ID, domain.DraftPatch{}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	got, _ := store.GetDraft(context.Background(), draft.ID)
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("UpdatedAt not bumped: %v vs %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestReturnedDraftIsIsolated(t *testing.T) {
	store := NewStore()
	draft, _ := store.CreateDraft(context.Background())
	store.PatchDraft(context.Background(), draft.ID, domain.DraftPatch{
		Answers: domain.AnswerTree{domain.SectionProduct: {"product_name": "Soup"}},
	})

	got, _ := store.GetDraft(context.Background(), draft.ID)
	got.Answers[domain.SectionProduct]["product_name"] = "tampered"

	fresh, _ := store.GetDraft(context.Background(), draft.ID)
	if fresh.Answers[domain.SectionProduct]["product_name"] != "Soup" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestAttachDraftToUser(t *testing.T) {
	store := NewStore()
	draft, _ := store.CreateDraft(context.Background())
	if err := store.AttachDraftToUser(context.Background(), draft.ID, "user-9"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, _ := store.GetDraft(context.Background(), draft.ID)
	if got.UserID != "user-9" {
		t.Fatalf("draft user = %q, want user-9", got.UserID)
	}
	if err := store.AttachDraftToUser(context.Background(), "missing", "user-9"); err == nil {
		t.Fatalf("attaching a missing draft must fail")
	}
}

func TestSavePlanStartsUnpaid(t *testing.T) {
	store := NewStore()
	report := domain.ValidationReport{Passed: true}
	plan, err := store.SavePlan(context.Background(), domain.SavePlanInput{
		DraftID:    "d-1",
		UserID:     "user-1",
		Answers:    domain.AnswerTree{domain.SectionProduct: {"product_name": "Soup"}},
		Generated:  domain.GeneratedPlan{FullPlan: domain.AnswerPayload{"doc": "text"}},
		Validation: &report,
	})
	if err != nil {
		t.Fatalf("save plan: %v", err)
	}
	if plan.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("payment status = %s, want unpaid", plan.PaymentStatus)
	}
	if plan.DraftID != "d-1" || plan.UserID != "user-1" {
		t.Fatalf("plan provenance wrong: %+v", plan)
	}

	got, err := store.GetPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if got.Validation == nil || !got.Validation.Passed {
		t.Fatalf("validation not carried onto the plan")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore()
	draft, _ := store.CreateDraft(context.Background())
	plan, _ := store.SavePlan(context.Background(), domain.SavePlanInput{DraftID: draft.ID})

	snap := store.ExportState()
	if len(snap.Drafts) != 1 || len(snap.Plans) != 1 {
		t.Fatalf("snapshot incomplete: %d drafts, %d plans", len(snap.Drafts), len(snap.Plans))
	}

	restored := NewStore()
	restored.ImportState(snap)
	if _, err := restored.GetDraft(context.Background(), draft.ID); err != nil {
		t.Fatalf("draft lost in round trip: %v", err)
	}
	if _, err := restored.GetPlan(context.Background(), plan.ID); err != nil {
		t.Fatalf("plan lost in round trip: %v", err)
	}
}
