package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"haccpcore/internal/blob"
	"haccpcore/pkg/domain"
)

// Promoter converts a validated draft into a permanent plan exactly once.
// It consumes ValidationCompleted events; rapid repeated invocations are
// tolerated because every attempt re-checks the recorded plan ID first and
// the whole promotion is serialized behind one mutex. On failure the draft
// is left untouched so a retry with the same event is safe.
type Promoter struct {
	drafts    domain.DraftStore
	plans     domain.PlanStore
	generator PlanGenerator
	auth      SessionSource
	sessions  SessionStore
	archive   blob.Store
	logger    *slog.Logger
	metrics   MetricsRecorder

	mu      sync.Mutex
	planID  string
	lastErr error
}

// PromoterOption configures optional collaborators.
type PromoterOption func(*Promoter)

// WithPromotionAuth installs the auth state source.
func WithPromotionAuth(auth SessionSource) PromoterOption {
	return func(p *Promoter) { p.auth = auth }
}

// WithPromotionSessionStore installs the resume pointer store cleared on
// successful promotion.
func WithPromotionSessionStore(sessions SessionStore) PromoterOption {
	return func(p *Promoter) { p.sessions = sessions }
}

// WithPromotionArchive installs the blob store that receives a JSON copy of
// the promoted plan document.
func WithPromotionArchive(archive blob.Store) PromoterOption {
	return func(p *Promoter) { p.archive = archive }
}

// WithPromotionLogger overrides the logger.
func WithPromotionLogger(logger *slog.Logger) PromoterOption {
	return func(p *Promoter) { p.logger = logger }
}

// WithPromotionMetrics installs a metrics recorder observing each attempt.
func WithPromotionMetrics(metrics MetricsRecorder) PromoterOption {
	return func(p *Promoter) { p.metrics = metrics }
}

// NewPromoter constructs a promotion handler.
func NewPromoter(drafts domain.DraftStore, plans domain.PlanStore, generator PlanGenerator, opts ...PromoterOption) *Promoter {
	p := &Promoter{
		drafts:    drafts,
		plans:     plans,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle promotes the draft described by the event. Once a plan ID has been
// recorded the call is a no-op returning the existing plan.
func (p *Promoter) Handle(ctx context.Context, event ValidationCompleted) (domain.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	plan, err := p.promoteLocked(ctx, event)
	if p.metrics != nil {
		p.metrics.Observe(ctx, "promote_draft", err == nil, time.Since(start))
	}
	return plan, err
}

func (p *Promoter) promoteLocked(ctx context.Context, event ValidationCompleted) (domain.Plan, error) {
	if p.planID != "" {
		return p.plans.GetPlan(ctx, p.planID)
	}
	if event.Validation == nil {
		return domain.Plan{}, fmt.Errorf("promotion requires a validation result for draft %s", event.DraftID)
	}

	// Drafts restored from persistence may carry answers only; regenerate
	// the content before persisting in that case.
	generated := event.Generated
	if len(generated.FullPlan) == 0 {
		var err error
		generated, err = p.generator.GeneratePlan(ctx, event.Answers)
		if err != nil {
			p.lastErr = err
			return domain.Plan{}, fmt.Errorf("regenerate plan: %w", err)
		}
	}

	var userID string
	if p.auth != nil {
		session, err := p.auth.GetSession(ctx)
		if err != nil {
			p.logger.Warn("auth lookup failed during promotion", "draft_id", event.DraftID, "error", err)
		} else if session != nil {
			userID = session.UserID
			if err := p.drafts.AttachDraftToUser(ctx, event.DraftID, userID); err != nil {
				p.logger.Warn("attach draft to user failed", "draft_id", event.DraftID, "error", err)
			}
		}
	}

	plan, err := p.plans.SavePlan(ctx, domain.SavePlanInput{
		DraftID:    event.DraftID,
		UserID:     userID,
		Answers:    event.Answers,
		Generated:  generated,
		Validation: event.Validation,
	})
	if err != nil {
		p.lastErr = err
		return domain.Plan{}, fmt.Errorf("save plan: %w", err)
	}

	p.planID = plan.ID
	p.lastErr = nil
	if p.sessions != nil {
		p.sessions.Clear()
	}
	p.archivePlan(ctx, plan)
	p.logger.Info("draft promoted", "draft_id", event.DraftID, "plan_id", plan.ID, "payment_status", plan.PaymentStatus)
	return plan, nil
}

// archivePlan writes the plan document to the blob store. Best effort; the
// plan record is already durable.
func (p *Promoter) archivePlan(ctx context.Context, plan domain.Plan) {
	if p.archive == nil {
		return
	}
	payload, err := json.Marshal(plan.FullPlan)
	if err != nil {
		p.logger.Warn("plan archive marshal failed", "plan_id", plan.ID, "error", err)
		return
	}
	key := "plans/" + plan.ID + ".json"
	if _, err := p.archive.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/json"}); err != nil {
		p.logger.Warn("plan archive write failed", "plan_id", plan.ID, "error", err)
	}
}

// PlanID returns the recorded plan ID, empty until promotion succeeded.
func (p *Promoter) PlanID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.planID
}

// LastError returns the most recent promotion failure, nil once a promotion
// succeeded. Callers surface it with a retry affordance.
func (p *Promoter) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Reset forgets the recorded promotion outcome. A restarted interview over
// the same draft promotes to a fresh plan; already-created plans stay in the
// store.
func (p *Promoter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.planID = ""
	p.lastErr = nil
}
