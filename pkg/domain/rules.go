package domain

import (
	"context"
	"fmt"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether a section transition commits.
const (
	// SeverityBlock aborts the transition.
	SeverityBlock Severity = "block"
	// SeverityWarn surfaces an advisory flag but allows the transition.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Action enumerates the kinds of interview mutations seen by rules.
type Action string

// Change actions captured when a section completes.
const (
	ActionComplete Action = "complete"
	ActionReenter  Action = "reenter"
)

// Change describes one interview mutation handed to the rules engine.
type Change struct {
	Section Section
	Action  Action
}

// RuleView provides read-only access to interview state for rule evaluation.
type RuleView interface {
	Answers() AnswerTree
	ProcessSteps() []ProcessStep
	HazardAnalyses() []StepHazardAnalysis
	SignificantHazards() []SignificantHazard
	CCPDecisions() []CCPDecision
}

// Rule defines an evaluation executed when a section completes.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Section  Section
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the advisory violations only.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "section transition blocked by rules"
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}
