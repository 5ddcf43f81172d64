package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"haccpcore/pkg/domain"
)

// recordingDraftStore captures PatchDraft calls for autosave assertions. The
// block channel, when set, holds a write open until released.
type recordingDraftStore struct {
	mu      sync.Mutex
	patches []domain.DraftPatch
	err     error
	block   chan struct{}
}

func (s *recordingDraftStore) CreateDraft(context.Context) (domain.Draft, error) {
	return domain.Draft{}, fmt.Errorf("not implemented")
}

func (s *recordingDraftStore) GetDraft(context.Context, string) (domain.Draft, error) {
	return domain.Draft{}, fmt.Errorf("not implemented")
}

func (s *recordingDraftStore) AttachDraftToUser(context.Context, string, string) error {
	return nil
}

func (s *recordingDraftStore) PatchDraft(_ context.Context, _ string, patch domain.DraftPatch) error {
	s.mu.Lock()
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.patches = append(s.patches, patch)
	return nil
}

func (s *recordingDraftStore) patchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

func (s *recordingDraftStore) lastPatch() domain.DraftPatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.patches) == 0 {
		return domain.DraftPatch{}
	}
	return s.patches[len(s.patches)-1]
}

func treeWith(value string) domain.AnswerTree {
	return domain.AnswerTree{domain.SectionProduct: {"product_name": value}}
}

func TestAutosaverCoalescesBurst(t *testing.T) {
	store := &recordingDraftStore{}
	a := NewAutosaver(store, "d-1", WithAutosaveDebounce(20*time.Millisecond))

	for i := 0; i < 10; i++ {
		a.Notify(treeWith(fmt.Sprintf("v%d", i)))
	}
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if got := store.patchCount(); got != 1 {
		t.Fatalf("burst must coalesce to one write, got %d", got)
	}
	patch := store.lastPatch()
	if patch.Answers[domain.SectionProduct]["product_name"] != "v9" {
		t.Fatalf("write must carry the latest payload, got %v", patch.Answers)
	}
}

func TestAutosaverDebounceDelaysWrite(t *testing.T) {
	store := &recordingDraftStore{}
	a := NewAutosaver(store, "d-1", WithAutosaveDebounce(60*time.Millisecond))
	defer a.Cancel()

	a.Notify(treeWith("v1"))
	if got := store.patchCount(); got != 0 {
		t.Fatalf("write before debounce window elapsed: %d", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.patchCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("debounced write never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAutosaverSerializesAroundInFlightWrite(t *testing.T) {
	store := &recordingDraftStore{block: make(chan struct{})}
	a := NewAutosaver(store, "d-1",
		WithAutosaveDebounce(5*time.Millisecond),
		WithAutosaveBusyRetry(5*time.Millisecond),
	)

	a.Notify(treeWith("v1"))
	// Wait for the first write to start and stall inside the store.
	time.Sleep(30 * time.Millisecond)

	// A new payload arrives while the write is in flight.
	a.Notify(treeWith("v2"))
	time.Sleep(30 * time.Millisecond)
	if got := store.patchCount(); got != 0 {
		t.Fatalf("second write dispatched while first still in flight: %d", got)
	}

	close(store.block)
	store.mu.Lock()
	store.block = nil
	store.mu.Unlock()

	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := store.patchCount(); got != 2 {
		t.Fatalf("expected both writes to land in order, got %d", got)
	}
	if store.lastPatch().Answers[domain.SectionProduct]["product_name"] != "v2" {
		t.Fatalf("second write must carry the superseding payload")
	}
}

func TestAutosaverSwallowsFailures(t *testing.T) {
	store := &recordingDraftStore{err: fmt.Errorf("disk full")}
	a := NewAutosaver(store, "d-1", WithAutosaveDebounce(5*time.Millisecond))

	a.Notify(treeWith("v1"))
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("failed write must not surface through flush: %v", err)
	}

	// The next mutation retries implicitly once the store recovers.
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	a.Notify(treeWith("v2"))
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := store.patchCount(); got != 1 {
		t.Fatalf("expected exactly the recovered write, got %d", got)
	}
}

func TestAutosaverCancelDropsPending(t *testing.T) {
	store := &recordingDraftStore{}
	a := NewAutosaver(store, "d-1", WithAutosaveDebounce(50*time.Millisecond))

	a.Notify(treeWith("v1"))
	a.Cancel()
	time.Sleep(100 * time.Millisecond)
	if got := store.patchCount(); got != 0 {
		t.Fatalf("canceled payload must not be written, got %d writes", got)
	}
}

func TestAutosaverIgnoresEmptyNotifications(t *testing.T) {
	store := &recordingDraftStore{}
	a := NewAutosaver(store, "d-1", WithAutosaveDebounce(5*time.Millisecond))

	a.Notify(domain.AnswerTree{})
	a.Notify(nil)
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := store.patchCount(); got != 0 {
		t.Fatalf("empty trees must be ignored, got %d writes", got)
	}
}

func TestAutosaverCloseFlushesAndStops(t *testing.T) {
	store := &recordingDraftStore{}
	a := NewAutosaver(store, "d-1", WithAutosaveDebounce(10*time.Millisecond))

	a.Notify(treeWith("v1"))
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := store.patchCount(); got != 1 {
		t.Fatalf("close must flush pending work, got %d writes", got)
	}

	a.Notify(treeWith("v2"))
	time.Sleep(50 * time.Millisecond)
	if got := store.patchCount(); got != 1 {
		t.Fatalf("closed autosaver must ignore notifications, got %d writes", got)
	}
}

func TestAutosaverFlushTimeout(t *testing.T) {
	store := &recordingDraftStore{block: make(chan struct{})}
	a := NewAutosaver(store, "d-1", WithAutosaveDebounce(time.Millisecond))

	a.Notify(treeWith("v1"))
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := a.Flush(ctx); err == nil {
		t.Fatalf("flush must respect context expiry while a write is stuck")
	}
	close(store.block)
}
