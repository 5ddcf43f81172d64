// Package memory implements the authoritative in-memory draft and plan
// store. The sqlite and postgres stores embed it and snapshot its state
// after each successful mutation.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"haccpcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

// Store holds drafts and plans in maps guarded by a single mutex. All values
// crossing the boundary are deep-cloned so callers cannot mutate stored state.
type Store struct {
	mu     sync.RWMutex
	drafts map[string]domain.Draft
	plans  map[string]domain.Plan
	now    func() time.Time
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		drafts: make(map[string]domain.Draft),
		plans:  make(map[string]domain.Plan),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateDraft allocates a new anonymous draft with an empty answer tree.
func (s *Store) CreateDraft(_ context.Context) (domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	draft := domain.Draft{
		Base:    domain.Base{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now},
		Answers: domain.AnswerTree{},
	}
	s.drafts[draft.ID] = cloneDraft(draft)
	return draft, nil
}

// GetDraft returns the draft by id.
func (s *Store) GetDraft(_ context.Context, id string) (domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[id]
	if !ok {
		return domain.Draft{}, domain.ErrNotFound{Kind: "draft", ID: id}
	}
	return cloneDraft(draft), nil
}

// PatchDraft applies a partial update. Nil patch fields leave the stored
// value untouched; a non-nil Answers replaces the whole tree.
func (s *Store) PatchDraft(_ context.Context, id string, patch domain.DraftPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[id]
	if !ok {
		return domain.ErrNotFound{Kind: "draft", ID: id}
	}
	if patch.Answers != nil {
		draft.Answers = patch.Answers.Clone()
	}
	if patch.Validation != nil {
		v := *patch.Validation
		draft.Validation = &v
	}
	draft.UpdatedAt = s.now()
	s.drafts[id] = draft
	return nil
}

// AttachDraftToUser binds an anonymous draft to a user account. Attaching an
// already-owned draft to the same user is a no-op.
func (s *Store) AttachDraftToUser(_ context.Context, draftID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[draftID]
	if !ok {
		return domain.ErrNotFound{Kind: "draft", ID: draftID}
	}
	draft.UserID = userID
	draft.UpdatedAt = s.now()
	s.drafts[draftID] = draft
	return nil
}

// GetPlan returns the plan by id.
func (s *Store) GetPlan(_ context.Context, id string) (domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return domain.Plan{}, domain.ErrNotFound{Kind: "plan", ID: id}
	}
	return clonePlan(plan), nil
}

// SavePlan stores a new unpaid plan built from the promotion input.
func (s *Store) SavePlan(_ context.Context, input domain.SavePlanInput) (domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	plan := domain.Plan{
		Base:          domain.Base{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now},
		DraftID:       input.DraftID,
		UserID:        input.UserID,
		PaymentStatus: domain.PaymentStatusUnpaid,
		FullPlan: domain.PlanContent{
			Answers:   input.Answers.Clone(),
			Generated: input.Generated,
		},
	}
	if input.Validation != nil {
		v := *input.Validation
		plan.Validation = &v
	}
	s.plans[plan.ID] = clonePlan(plan)
	return plan, nil
}

// Snapshot is the serialized form of the full store state.
type Snapshot struct {
	Drafts []domain.Draft `json:"drafts"`
	Plans  []domain.Plan  `json:"plans"`
}

// ExportState returns a deep copy of the current state for snapshotting.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Drafts: make([]domain.Draft, 0, len(s.drafts)),
		Plans:  make([]domain.Plan, 0, len(s.plans)),
	}
	for _, d := range s.drafts {
		snap.Drafts = append(snap.Drafts, cloneDraft(d))
	}
	for _, p := range s.plans {
		snap.Plans = append(snap.Plans, clonePlan(p))
	}
	return snap
}

// ImportState replaces the current state with the snapshot contents.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = make(map[string]domain.Draft, len(snap.Drafts))
	for _, d := range snap.Drafts {
		s.drafts[d.ID] = cloneDraft(d)
	}
	s.plans = make(map[string]domain.Plan, len(snap.Plans))
	for _, p := range snap.Plans {
		s.plans[p.ID] = clonePlan(p)
	}
}

func cloneDraft(d domain.Draft) domain.Draft {
	out := d
	out.Answers = d.Answers.Clone()
	if d.Validation != nil {
		v := *d.Validation
		out.Validation = &v
	}
	return out
}

func clonePlan(p domain.Plan) domain.Plan {
	out := p
	out.FullPlan.Answers = p.FullPlan.Answers.Clone()
	if p.Validation != nil {
		v := *p.Validation
		out.Validation = &v
	}
	return out
}
