package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"haccpcore/pkg/domain"
)

// Autosave timing defaults: dispatch after two quiet seconds; when a write
// is still in flight, re-check after one second instead of writing twice.
const (
	DefaultAutosaveDebounce  = 2 * time.Second
	DefaultAutosaveBusyRetry = time.Second
)

// Autosaver persists answer tree mutations to the backing draft under a
// debounced, strictly serialized write discipline. At most one PATCH per
// draft is in flight at any instant; a payload superseded while a write is
// in flight is dispatched immediately afterwards without a new debounce.
// Persistence failures are logged and swallowed; the next mutation retries
// implicitly.
type Autosaver struct {
	store     domain.DraftStore
	draftID   string
	debounce  time.Duration
	busyRetry time.Duration
	logger    *slog.Logger
	metrics   MetricsRecorder

	mu       sync.Mutex
	pending  domain.AnswerTree
	timer    *time.Timer
	inFlight bool
	closed   bool
	waiters  []chan struct{}
}

// AutosaverOption configures an Autosaver.
type AutosaverOption func(*Autosaver)

// WithAutosaveDebounce overrides the quiescence window.
func WithAutosaveDebounce(d time.Duration) AutosaverOption {
	return func(a *Autosaver) { a.debounce = d }
}

// WithAutosaveBusyRetry overrides the in-flight recheck delay.
func WithAutosaveBusyRetry(d time.Duration) AutosaverOption {
	return func(a *Autosaver) { a.busyRetry = d }
}

// WithAutosaveLogger overrides the logger.
func WithAutosaveLogger(logger *slog.Logger) AutosaverOption {
	return func(a *Autosaver) { a.logger = logger }
}

// WithAutosaveMetrics installs a metrics recorder observing each dispatch.
func WithAutosaveMetrics(metrics MetricsRecorder) AutosaverOption {
	return func(a *Autosaver) { a.metrics = metrics }
}

// NewAutosaver constructs an autosaver bound to one draft.
func NewAutosaver(store domain.DraftStore, draftID string, opts ...AutosaverOption) *Autosaver {
	a := &Autosaver{
		store:     store,
		draftID:   draftID,
		debounce:  DefaultAutosaveDebounce,
		busyRetry: DefaultAutosaveBusyRetry,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Notify records the mutated tree as the pending payload and (re)arms the
// debounce timer. Empty trees and notifications without a draft are ignored.
func (a *Autosaver) Notify(answers domain.AnswerTree) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.draftID == "" || len(answers) == 0 {
		return
	}
	a.pending = answers.Clone()
	if a.timer == nil {
		a.timer = time.AfterFunc(a.debounce, a.dispatch)
	} else {
		a.timer.Reset(a.debounce)
	}
}

// dispatch fires when the debounce window elapses. It defers to the busy
// retry delay when a write is in flight and otherwise sends the pending
// payload, looping immediately when a newer payload arrived mid-write.
func (a *Autosaver) dispatch() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.inFlight {
		if a.timer != nil {
			a.timer.Reset(a.busyRetry)
		}
		a.mu.Unlock()
		return
	}
	payload := a.pending
	a.pending = nil
	if payload == nil {
		a.notifyWaiters()
		a.mu.Unlock()
		return
	}
	a.inFlight = true
	a.mu.Unlock()

	ctx := context.Background()
	start := time.Now()
	err := a.store.PatchDraft(ctx, a.draftID, domain.DraftPatch{Answers: payload})
	if a.metrics != nil {
		a.metrics.Observe(ctx, "autosave_patch", err == nil, time.Since(start))
	}
	if err != nil {
		a.logger.Warn("autosave failed; next change will retry", "draft_id", a.draftID, "error", err)
	}

	a.mu.Lock()
	a.inFlight = false
	again := a.pending != nil && !a.closed
	a.notifyWaiters()
	a.mu.Unlock()

	if again {
		a.dispatch()
	}
}

// Flush forces any pending payload out and waits until no write is in
// flight, or until the context expires.
func (a *Autosaver) Flush(ctx context.Context) error {
	for {
		a.mu.Lock()
		if a.closed || (a.pending == nil && !a.inFlight) {
			a.mu.Unlock()
			return nil
		}
		if a.pending != nil && !a.inFlight {
			if a.timer != nil {
				a.timer.Stop()
			}
			a.mu.Unlock()
			a.dispatch()
			continue
		}
		ch := make(chan struct{})
		a.waiters = append(a.waiters, ch)
		a.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Cancel drops the pending payload and stops the timer. An already
// dispatched write is never retracted.
func (a *Autosaver) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.pending = nil
	a.notifyWaiters()
}

// Close flushes outstanding work and permanently stops the autosaver.
func (a *Autosaver) Close(ctx context.Context) error {
	err := a.Flush(ctx)
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.notifyWaiters()
	a.mu.Unlock()
	return err
}

// notifyWaiters releases Flush callers. Caller holds the mutex.
func (a *Autosaver) notifyWaiters() {
	for _, ch := range a.waiters {
		close(ch)
	}
	a.waiters = nil
}
