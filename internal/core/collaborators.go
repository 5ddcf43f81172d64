package core

import (
	"context"
	"sync"

	"haccpcore/pkg/domain"
)

// PlanGenerator is the external document generation collaborator. The core
// never renders documents itself; it hands the answer tree over and records
// the result.
type PlanGenerator interface {
	// GeneratePlan assembles the full plan content from the answer tree.
	GeneratePlan(ctx context.Context, answers domain.AnswerTree) (domain.GeneratedPlan, error)
	// ReviewPlan runs the advanced review over generated content.
	ReviewPlan(ctx context.Context, generated domain.GeneratedPlan) (domain.ValidationReport, error)
}

// AuthSession describes the authenticated operator, when one exists.
type AuthSession struct {
	UserID string
	Email  string
}

// SessionSource exposes the surrounding application's auth state.
type SessionSource interface {
	// GetSession returns the current session or nil when anonymous.
	GetSession(ctx context.Context) (*AuthSession, error)
}

// ResumePointer is the persisted progress marker used to resume an
// interrupted interview.
type ResumePointer struct {
	DraftID string         `json:"draft_id"`
	Section domain.Section `json:"section"`
}

// SessionStore persists the resume pointer. Created on first answer, cleared
// on promotion or explicit restart.
type SessionStore interface {
	Load() (ResumePointer, bool)
	Save(ResumePointer)
	Clear()
}

// MemorySessionStore is a process-local SessionStore for tests and
// single-instance deployments.
type MemorySessionStore struct {
	mu      sync.Mutex
	pointer ResumePointer
	set     bool
}

// NewMemorySessionStore constructs an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore { return &MemorySessionStore{} }

// Load returns the stored pointer, if any.
func (s *MemorySessionStore) Load() (ResumePointer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointer, s.set
}

// Save records the pointer.
func (s *MemorySessionStore) Save(p ResumePointer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointer = p
	s.set = true
}

// Clear removes the pointer.
func (s *MemorySessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointer = ResumePointer{}
	s.set = false
}
