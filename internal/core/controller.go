package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"haccpcore/pkg/domain"
)

// ValidationCompleted is emitted once per successful generation pass. The
// promotion handler consumes it; promotion idempotency is guarded there, not
// by the emission count.
type ValidationCompleted struct {
	DraftID    string
	Answers    domain.AnswerTree
	Generated  domain.GeneratedPlan
	Validation *domain.ValidationReport
}

// SequenceError reports a submission for a section the interview is not in.
// A client sequencing mistake, recoverable by resubmitting to Current.
type SequenceError struct {
	Current   domain.Section
	Requested domain.Section
}

func (e SequenceError) Error() string {
	if e.Requested == domain.SectionGenerating || e.Requested == domain.SectionComplete {
		return fmt.Sprintf("section %s accepts no input", e.Requested)
	}
	return fmt.Sprintf("interview is at section %s, cannot complete %s", e.Current, e.Requested)
}

// TransitionHook runs after every section change. The surrounding UI uses it
// for concerns like scrolling to the top of the page.
type TransitionHook func(from, to domain.Section)

// navFrame snapshots the controller position before a forward transition so
// back navigation can restore it exactly.
type navFrame struct {
	section   domain.Section
	stepIndex int
	ccpIndex  int
}

// Controller is the interview state machine. It owns the current section,
// the loop indices, the back-navigation history, and the canonical answer
// tree, and orchestrates rules, autosave, generation and promotion
// triggering. All state is guarded by a single mutex; persistence calls made
// by collaborators are asynchronous and never block section completion.
type Controller struct {
	mu sync.Mutex

	draftID string
	current domain.Section
	answers domain.AnswerTree

	steps       []domain.ProcessStep
	analyses    []domain.StepHazardAnalysis
	significant []domain.SignificantHazard
	decisions   []domain.CCPDecision
	management  []domain.CCPManagementEntry

	stepIndex int
	ccpIndex  int
	history   []navFrame

	generated  *domain.GeneratedPlan
	validation *domain.ValidationReport

	engine      *domain.RulesEngine
	generator   PlanGenerator
	autosaver   *Autosaver
	sessions    SessionStore
	onValidated func(ValidationCompleted)
	afterHook   TransitionHook
	logger      *slog.Logger
}

// ControllerOption configures optional collaborators.
type ControllerOption func(*Controller)

// WithRulesEngine installs the rules engine evaluated on section completion.
func WithRulesEngine(engine *domain.RulesEngine) ControllerOption {
	return func(c *Controller) { c.engine = engine }
}

// WithGenerator installs the external plan generation collaborator.
func WithGenerator(generator PlanGenerator) ControllerOption {
	return func(c *Controller) { c.generator = generator }
}

// WithAutosaver installs the autosave queue notified on answer mutations.
func WithAutosaver(autosaver *Autosaver) ControllerOption {
	return func(c *Controller) { c.autosaver = autosaver }
}

// WithSessionStore installs the resume pointer store.
func WithSessionStore(sessions SessionStore) ControllerOption {
	return func(c *Controller) { c.sessions = sessions }
}

// WithValidationHandler installs the consumer of ValidationCompleted events.
func WithValidationHandler(handler func(ValidationCompleted)) ControllerOption {
	return func(c *Controller) { c.onValidated = handler }
}

// WithTransitionHook installs the post-transition hook.
func WithTransitionHook(hook TransitionHook) ControllerOption {
	return func(c *Controller) { c.afterHook = hook }
}

// WithLogger installs the controller logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// NewController constructs an interview positioned at the first section.
func NewController(draftID string, opts ...ControllerOption) *Controller {
	c := &Controller{
		draftID: draftID,
		current: domain.SectionProduct,
		answers: make(domain.AnswerTree),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompleteSection merges the submitted answers under the given section,
// evaluates rules, and advances the state machine. It returns the section
// the interview is in afterwards together with the aggregated rule result.
// Blocking violations abort the transition and are returned as a
// RuleViolationError; generation failures revert to the validation section
// and are returned verbatim. Both are recoverable by re-attempting.
func (c *Controller) CompleteSection(ctx context.Context, section domain.Section, payload domain.AnswerPayload) (domain.Section, domain.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !section.Valid() {
		return c.current, domain.Result{}, fmt.Errorf("unknown section %q", section)
	}
	if section == domain.SectionGenerating || section == domain.SectionComplete {
		return c.current, domain.Result{}, SequenceError{Current: c.current, Requested: section}
	}
	if section != c.current {
		return c.current, domain.Result{}, SequenceError{Current: c.current, Requested: section}
	}

	firstAnswer := len(c.answers) == 0
	c.mergeAnswers(section, payload)

	// Section-specific intake happens before rules so rules see fresh state.
	if section == domain.SectionProcess {
		c.adoptProcessSteps(processStepsFromPayload(payload))
	}

	result, err := c.evaluateRules(ctx, section)
	if err != nil {
		return c.current, domain.Result{}, err
	}
	if result.HasBlocking() {
		if section == domain.SectionPRP {
			// Missing process steps send the operator back to the process
			// section rather than stalling on PRP.
			c.switchTo(domain.SectionProcess)
		}
		return c.current, result, domain.RuleViolationError{Result: result}
	}

	frame := navFrame{section: c.current, stepIndex: c.stepIndex, ccpIndex: c.ccpIndex}

	var next domain.Section
	switch section {
	case domain.SectionProduct:
		next = domain.SectionProcess
	case domain.SectionProcess:
		next = domain.SectionPRP
	case domain.SectionPRP:
		c.stepIndex = 0
		next = domain.SectionHazards
	case domain.SectionHazards:
		next, err = c.completeHazardStep(payload)
	case domain.SectionCCPDetermination:
		next, err = c.completeCCPDetermination(payload)
	case domain.SectionCCPManagement:
		c.management = ManagementEntriesFromPayload(payload, c.decisions)
		next = domain.SectionValidation
	case domain.SectionValidation:
		return c.completeValidation(ctx, frame, result, firstAnswer)
	}
	if err != nil {
		return c.current, result, err
	}

	c.history = append(c.history, frame)
	c.switchTo(next)
	c.afterMutation(firstAnswer)
	return c.current, result, nil
}

// completeHazardStep records the evaluations for the step at the current
// loop index, keyed by that index, and advances the loop.
func (c *Controller) completeHazardStep(payload domain.AnswerPayload) (domain.Section, error) {
	idx := c.stepIndex
	if idx >= len(c.steps) {
		return c.current, fmt.Errorf("hazard loop index %d out of range for %d steps", idx, len(c.steps))
	}
	analysis := domain.StepHazardAnalysis{
		StepID:      c.steps[idx].ID,
		Evaluations: hazardEvaluationsFromPayload(payload),
	}
	if idx < len(c.analyses) {
		c.analyses[idx] = analysis
	} else {
		c.analyses = append(c.analyses, analysis)
	}
	c.stepIndex = idx + 1

	if c.stepIndex < len(c.steps) {
		return domain.SectionHazards, nil
	}
	c.significant = SignificantHazards(c.analyses, c.steps)
	if len(c.significant) == 0 {
		return domain.SectionValidation, nil
	}
	c.ccpIndex = 0
	return domain.SectionCCPDetermination, nil
}

// completeCCPDetermination evaluates the decision tree for the significant
// hazard at the current loop index and advances the loop.
func (c *Controller) completeCCPDetermination(payload domain.AnswerPayload) (domain.Section, error) {
	idx := c.ccpIndex
	if idx >= len(c.significant) {
		return c.current, fmt.Errorf("ccp loop index %d out of range for %d significant hazards", idx, len(c.significant))
	}
	hazard := c.significant[idx]
	answers := ccpAnswersFromPayload(payload)
	decision := domain.CCPDecision{
		StepName: hazard.StepName,
		Hazard:   hazard.Hazard,
		IsCCP:    EvaluateCCP(answers),
		Answers:  answers,
	}
	if idx < len(c.decisions) {
		c.decisions[idx] = decision
		c.decisions = c.decisions[:idx+1]
	} else {
		c.decisions = append(c.decisions, decision)
	}
	c.ccpIndex = idx + 1

	if c.ccpIndex < len(c.significant) {
		return domain.SectionCCPDetermination, nil
	}
	for _, d := range c.decisions {
		if d.IsCCP {
			return domain.SectionCCPManagement, nil
		}
	}
	return domain.SectionValidation, nil
}

// completeValidation runs the generation pass: validation -> generating ->
// complete. Failures of the generation or review call revert to validation;
// nothing downstream is mutated, so the same transition can be retried.
func (c *Controller) completeValidation(ctx context.Context, frame navFrame, result domain.Result, firstAnswer bool) (domain.Section, domain.Result, error) {
	if c.generator == nil {
		return c.current, result, fmt.Errorf("plan generator not configured")
	}

	c.switchTo(domain.SectionGenerating)
	generated, err := c.generator.GeneratePlan(ctx, c.answers.Clone())
	if err != nil {
		c.switchTo(domain.SectionValidation)
		c.logger.Warn("plan generation failed", "draft_id", c.draftID, "error", err)
		return c.current, result, fmt.Errorf("generate plan: %w", err)
	}
	report, err := c.generator.ReviewPlan(ctx, generated)
	if err != nil {
		c.switchTo(domain.SectionValidation)
		c.logger.Warn("plan review failed", "draft_id", c.draftID, "error", err)
		return c.current, result, fmt.Errorf("review plan: %w", err)
	}

	c.generated = &generated
	c.validation = &report
	c.history = append(c.history, frame)
	c.switchTo(domain.SectionComplete)
	c.afterMutation(firstAnswer)

	if c.onValidated != nil {
		c.onValidated(ValidationCompleted{
			DraftID:    c.draftID,
			Answers:    c.answers.Clone(),
			Generated:  generated,
			Validation: &report,
		})
	}
	return c.current, result, nil
}

// GoBack pops the last navigation frame and restores the position recorded
// before the matching forward transition. A no-op on an empty stack.
func (c *Controller) GoBack() domain.Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.history)
	if n == 0 {
		return c.current
	}
	frame := c.history[n-1]
	c.history = c.history[:n-1]
	from := c.current
	c.current = frame.section
	c.stepIndex = frame.stepIndex
	c.ccpIndex = frame.ccpIndex
	if c.afterHook != nil {
		c.afterHook(from, c.current)
	}
	return c.current
}

// Jump moves the interview to the named section without touching the history
// stack, honoring the deep-link prerequisite guards. Jumps to sections whose
// prerequisite data is missing return an error and leave state unchanged.
func (c *Controller) Jump(section domain.Section) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !section.Valid() {
		return fmt.Errorf("unknown section %q", section)
	}
	if section == c.current {
		return nil
	}
	if !canEnter(section, c.snapshotView()) {
		return fmt.Errorf("prerequisite data missing for section %s", section)
	}
	c.switchTo(section)
	return nil
}

// Progress returns the interview completion percentage, counting loop
// iterations fractionally inside the hazards and CCP determination loops.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	order := domain.AllSections()
	idx := c.current.Index()
	if idx < 0 {
		return 0
	}
	frac := 0.0
	switch c.current {
	case domain.SectionHazards:
		if len(c.steps) > 0 {
			frac = float64(c.stepIndex) / float64(len(c.steps))
		}
	case domain.SectionCCPDetermination:
		if len(c.significant) > 0 {
			frac = float64(c.ccpIndex) / float64(len(c.significant))
		}
	}
	pct := int(100 * (float64(idx) + frac) / float64(len(order)-1))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Reset clears all in-memory interview state and timers for a fresh draft.
// Already-dispatched autosave writes are never retracted.
func (c *Controller) Reset(draftID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draftID = draftID
	c.current = domain.SectionProduct
	c.answers = make(domain.AnswerTree)
	c.steps = nil
	c.analyses = nil
	c.significant = nil
	c.decisions = nil
	c.management = nil
	c.stepIndex = 0
	c.ccpIndex = 0
	c.history = nil
	c.generated = nil
	c.validation = nil
	if c.autosaver != nil {
		c.autosaver.Cancel()
	}
	if c.sessions != nil {
		c.sessions.Clear()
	}
}

// Section returns the current interview section.
func (c *Controller) Section() domain.Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// DraftID returns the backing draft identifier.
func (c *Controller) DraftID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftID
}

// Answers returns a deep copy of the canonical answer tree.
func (c *Controller) Answers() domain.AnswerTree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Clone()
}

// ProcessSteps returns the ordered process step list.
func (c *Controller) ProcessSteps() []domain.ProcessStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ProcessStep(nil), c.steps...)
}

// Significant returns the current significant-hazard list in pairing order.
func (c *Controller) Significant() []domain.SignificantHazard {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.SignificantHazard(nil), c.significant...)
}

// Decisions returns the accumulated CCP decisions in loop order.
func (c *Controller) Decisions() []domain.CCPDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CCPDecision(nil), c.decisions...)
}

// ManagementEntries returns the captured CCP management entries.
func (c *Controller) ManagementEntries() []domain.CCPManagementEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CCPManagementEntry(nil), c.management...)
}

// Validation returns the advanced review report once generation succeeded.
func (c *Controller) Validation() *domain.ValidationReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.validation == nil {
		return nil
	}
	report := *c.validation
	return &report
}

// Generated returns the generated plan content once generation succeeded.
func (c *Controller) Generated() *domain.GeneratedPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generated == nil {
		return nil
	}
	generated := *c.generated
	return &generated
}

// NavigationState reports the resumable position, with the history stack
// flattened to section indices.
func (c *Controller) NavigationState() domain.NavigationState {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]int, len(c.history))
	for i, frame := range c.history {
		history[i] = frame.section.Index()
	}
	return domain.NavigationState{
		Current:   c.current,
		StepIndex: c.stepIndex,
		CCPIndex:  c.ccpIndex,
		History:   history,
	}
}

// mergeAnswers folds the payload into the tree. Loop sections nest each
// iteration's answers under a per-iteration key so earlier iterations are
// never overwritten.
func (c *Controller) mergeAnswers(section domain.Section, payload domain.AnswerPayload) {
	switch section {
	case domain.SectionHazards:
		if c.stepIndex < len(c.steps) {
			payload = domain.AnswerPayload{c.steps[c.stepIndex].ID: map[string]any(payload.Clone())}
		}
	case domain.SectionCCPDetermination:
		if c.ccpIndex < len(c.significant) {
			hazard := c.significant[c.ccpIndex]
			key := domain.NewGroupKey(hazard.StepName, hazard.Hazard)
			payload = domain.AnswerPayload{string(key): map[string]any(payload.Clone())}
		}
	}
	c.answers.Merge(section, payload)
}

// adoptProcessSteps installs the parsed step list. Changing the step set
// invalidates all downstream loop state.
func (c *Controller) adoptProcessSteps(steps []domain.ProcessStep) {
	same := len(steps) == len(c.steps)
	if same {
		for i := range steps {
			if steps[i].ID != c.steps[i].ID {
				same = false
				break
			}
		}
	}
	c.steps = steps
	if same {
		return
	}
	c.analyses = nil
	c.significant = nil
	c.decisions = nil
	c.management = nil
	c.stepIndex = 0
	c.ccpIndex = 0
}

func (c *Controller) evaluateRules(ctx context.Context, section domain.Section) (domain.Result, error) {
	if c.engine == nil {
		return domain.Result{}, nil
	}
	return c.engine.Evaluate(ctx, c.snapshotView(), []domain.Change{{Section: section, Action: domain.ActionComplete}})
}

func (c *Controller) switchTo(section domain.Section) {
	if section == c.current {
		return
	}
	from := c.current
	c.current = section
	if c.afterHook != nil {
		c.afterHook(from, section)
	}
}

// afterMutation handles the shared post-transition effects: autosave
// notification and resume pointer upkeep.
func (c *Controller) afterMutation(firstAnswer bool) {
	if c.autosaver != nil && c.draftID != "" && len(c.answers) > 0 {
		c.autosaver.Notify(c.answers)
	}
	if c.sessions != nil && (firstAnswer || len(c.answers) > 0) {
		c.sessions.Save(ResumePointer{DraftID: c.draftID, Section: c.current})
	}
}

// controllerView is an immutable rule/guard view over controller state.
// Snapshots are taken under the controller lock.
type controllerView struct {
	answers     domain.AnswerTree
	steps       []domain.ProcessStep
	analyses    []domain.StepHazardAnalysis
	significant []domain.SignificantHazard
	decisions   []domain.CCPDecision
}

func (c *Controller) snapshotView() controllerView {
	return controllerView{
		answers:     c.answers,
		steps:       c.steps,
		analyses:    c.analyses,
		significant: c.significant,
		decisions:   c.decisions,
	}
}

// Answers implements domain.RuleView.
func (v controllerView) Answers() domain.AnswerTree { return v.answers }

// ProcessSteps implements domain.RuleView.
func (v controllerView) ProcessSteps() []domain.ProcessStep { return v.steps }

// HazardAnalyses implements domain.RuleView.
func (v controllerView) HazardAnalyses() []domain.StepHazardAnalysis { return v.analyses }

// SignificantHazards implements domain.RuleView.
func (v controllerView) SignificantHazards() []domain.SignificantHazard { return v.significant }

// CCPDecisions implements domain.RuleView.
func (v controllerView) CCPDecisions() []domain.CCPDecision { return v.decisions }
