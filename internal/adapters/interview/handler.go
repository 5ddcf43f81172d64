// Package interview exposes the interview core over HTTP. Each draft gets a
// server-side session holding its controller, autosaver and promoter; the
// handler multiplexes requests onto those sessions.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"haccpcore/internal/blob"
	"haccpcore/internal/core"
	"haccpcore/pkg/domain"
)

// Handler provides HTTP access to interview drafts and promoted plans.
type Handler struct {
	Store     domain.Store
	Generator core.PlanGenerator
	Schemas   core.SchemaProvider
	Auth      core.SessionSource
	Archive   blob.Store
	Metrics   core.MetricsRecorder
	Logger    *slog.Logger

	// AutosaveDebounce overrides the default debounce window when positive.
	AutosaveDebounce time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	controller *core.Controller
	autosaver  *core.Autosaver
	promoter   *core.Promoter
}

// NewHandler constructs an interview HTTP handler.
func NewHandler(store domain.Store, generator core.PlanGenerator) *Handler {
	return &Handler{
		Store:     store,
		Generator: generator,
		Schemas:   core.DefaultSchemaProvider(),
		Logger:    slog.Default(),
		sessions:  make(map[string]*session),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Generator == nil {
		writeError(w, http.StatusInternalServerError, "interview handler not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/interviews":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleCreate(w, r)
	case strings.HasPrefix(path, "/api/v1/interviews/"):
		h.handleInterview(w, r, strings.TrimPrefix(path, "/api/v1/interviews/"))
	case strings.HasPrefix(path, "/api/v1/plans/"):
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleGetPlan(w, r, strings.TrimPrefix(path, "/api/v1/plans/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleInterview(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id := segments[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	sess, err := h.ensureSession(r.Context(), id)
	if err != nil {
		var notFound domain.ErrNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "interview not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load interview failed")
		return
	}

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, sess)
	case len(segments) == 3 && segments[1] == "sections" && r.Method == http.MethodPost:
		h.handleCompleteSection(w, r, sess, segments[2])
	case len(segments) == 2 && segments[1] == "back" && r.Method == http.MethodPost:
		h.handleBack(w, sess)
	case len(segments) == 2 && segments[1] == "progress" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"progress": sess.controller.Progress()})
	case len(segments) == 2 && segments[1] == "questions" && r.Method == http.MethodGet:
		h.handleQuestions(w, r, sess)
	case len(segments) == 2 && segments[1] == "flush" && r.Method == http.MethodPost:
		if err := sess.autosaver.Flush(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "flush failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flushed": true})
	default:
		writeError(w, http.StatusNotFound, "interview endpoint not found")
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	draft, err := h.Store.CreateDraft(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create draft failed")
		return
	}
	sess := h.newSession(draft.ID)
	h.mu.Lock()
	h.sessions[draft.ID] = sess
	h.mu.Unlock()
	writeJSON(w, http.StatusCreated, h.stateResponse(sess))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, sess *session) {
	// new=true restarts the interview over the same draft record: timers,
	// loop state and the resume pointer are dropped. Any step parameter on
	// the same request is ignored since the fresh interview has no data to
	// jump over.
	if core.DecodeNew(r.URL.Query()) {
		sess.controller.Reset(sess.controller.DraftID())
		sess.promoter.Reset()
		writeJSON(w, http.StatusOK, h.stateResponse(sess))
		return
	}
	// Deep links name a target section in the query. Unreachable targets fall
	// back to the current section rather than failing the request.
	if target, ok := core.DecodeJump(r.URL.Query(), sess.controller.Section()); ok {
		if err := sess.controller.Jump(target); err != nil {
			h.Logger.Warn("deep link rejected", "section", target, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, h.stateResponse(sess))
}

type completeSectionRequest struct {
	Answers map[string]any `json:"answers"`
}

func (h *Handler) handleCompleteSection(w http.ResponseWriter, r *http.Request, sess *session, key string) {
	section := domain.Section(key)
	if !section.Valid() {
		writeError(w, http.StatusNotFound, "unknown section")
		return
	}
	var req completeSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid section payload")
		return
	}
	next, result, err := sess.controller.CompleteSection(r.Context(), section, domain.AnswerPayload(req.Answers))
	if err != nil {
		var ruleErr domain.RuleViolationError
		if errors.As(err, &ruleErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      ruleErr.Error(),
				"section":    next,
				"violations": violationPayload(ruleErr.Result.Violations),
			})
			return
		}
		var seqErr core.SequenceError
		if errors.As(err, &seqErr) {
			writeError(w, http.StatusConflict, seqErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := h.stateResponse(sess)
	if warnings := result.Warnings(); len(warnings) > 0 {
		resp["warnings"] = violationPayload(warnings)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBack(w http.ResponseWriter, sess *session) {
	sess.controller.GoBack()
	writeJSON(w, http.StatusOK, h.stateResponse(sess))
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request, sess *session) {
	section := sess.controller.Section()
	if raw := r.URL.Query().Get("section"); raw != "" {
		section = domain.Section(raw)
		if !section.Valid() {
			writeError(w, http.StatusNotFound, "unknown section")
			return
		}
	}
	// The ccp_management schema is dynamic: one group per confirmed CCP.
	if section == domain.SectionCCPManagement {
		schema := core.FanOutCCPGroups(core.CCPManagementTemplate(), sess.controller.Decisions())
		writeJSON(w, http.StatusOK, map[string]any{"schema": schema})
		return
	}
	schema, err := h.Schemas.Questions(section, r.URL.Query().Get("locale"))
	if err != nil {
		writeError(w, http.StatusNotFound, "no questions for section")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": schema})
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request, id string) {
	plan, err := h.Store.GetPlan(r.Context(), id)
	if err != nil {
		var notFound domain.ErrNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load plan failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

// ensureSession returns the live session for a draft, rebuilding one from the
// store after a restart. Rebuilt sessions restart at the first section; the
// saved answer tree is preserved through the draft record itself.
func (h *Handler) ensureSession(ctx context.Context, draftID string) (*session, error) {
	h.mu.Lock()
	if sess, ok := h.sessions[draftID]; ok {
		h.mu.Unlock()
		return sess, nil
	}
	h.mu.Unlock()

	if _, err := h.Store.GetDraft(ctx, draftID); err != nil {
		return nil, err
	}
	sess := h.newSession(draftID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.sessions[draftID]; ok {
		return existing, nil
	}
	h.sessions[draftID] = sess
	return sess, nil
}

func (h *Handler) newSession(draftID string) *session {
	autosaveOpts := []core.AutosaverOption{core.WithAutosaveLogger(h.Logger)}
	if h.AutosaveDebounce > 0 {
		autosaveOpts = append(autosaveOpts, core.WithAutosaveDebounce(h.AutosaveDebounce))
	}
	if h.Metrics != nil {
		autosaveOpts = append(autosaveOpts, core.WithAutosaveMetrics(h.Metrics))
	}
	autosaver := core.NewAutosaver(h.Store, draftID, autosaveOpts...)

	promoterOpts := []core.PromoterOption{core.WithPromotionLogger(h.Logger)}
	if h.Auth != nil {
		promoterOpts = append(promoterOpts, core.WithPromotionAuth(h.Auth))
	}
	if h.Archive != nil {
		promoterOpts = append(promoterOpts, core.WithPromotionArchive(h.Archive))
	}
	if h.Metrics != nil {
		promoterOpts = append(promoterOpts, core.WithPromotionMetrics(h.Metrics))
	}
	sessions := core.NewMemorySessionStore()
	promoterOpts = append(promoterOpts, core.WithPromotionSessionStore(sessions))
	promoter := core.NewPromoter(h.Store, h.Store, h.Generator, promoterOpts...)

	controller := core.NewController(draftID,
		core.WithRulesEngine(core.NewDefaultRulesEngine()),
		core.WithGenerator(h.Generator),
		core.WithAutosaver(autosaver),
		core.WithSessionStore(sessions),
		core.WithLogger(h.Logger),
		core.WithValidationHandler(func(event core.ValidationCompleted) {
			if _, err := promoter.Handle(context.Background(), event); err != nil {
				h.Logger.Warn("promotion failed", "draft_id", event.DraftID, "error", err)
			}
		}),
	)
	return &session{controller: controller, autosaver: autosaver, promoter: promoter}
}

func (h *Handler) stateResponse(sess *session) map[string]any {
	c := sess.controller
	resp := map[string]any{
		"draft_id":   c.DraftID(),
		"section":    c.Section(),
		"progress":   c.Progress(),
		"answers":    c.Answers(),
		"navigation": c.NavigationState(),
		"query":      core.EncodeNavigation(nil, c.Section(), c.DraftID()).Encode(),
	}
	if v := c.Validation(); v != nil {
		resp["validation"] = v
	}
	if planID := sess.promoter.PlanID(); planID != "" {
		resp["plan_id"] = planID
	}
	return resp
}

// Close flushes and stops every live autosaver. Used on graceful shutdown.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()
	var firstErr error
	for _, s := range sessions {
		if err := s.autosaver.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type violationView struct {
	Rule     string          `json:"rule"`
	Severity domain.Severity `json:"severity"`
	Message  string          `json:"message"`
	Section  domain.Section  `json:"section,omitempty"`
}

func violationPayload(violations []domain.Violation) []violationView {
	out := make([]violationView, 0, len(violations))
	for _, v := range violations {
		out = append(out, violationView{Rule: v.Rule, Severity: v.Severity, Message: v.Message, Section: v.Section})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
