package domain

import "testing"

func TestResultMergeAndSeverityQueries(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn, Message: "advisory"}}})
	result.Merge(Result{})
	result.Merge(Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock, Message: "stop"}}})

	if len(result.Violations) != 2 {
		t.Fatalf("expected 2 violations after merge, got %d", len(result.Violations))
	}
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation to be reported")
	}
	warnings := result.Warnings()
	if len(warnings) != 1 || warnings[0].Rule != "a" {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
}

func TestResultWithoutBlocking(t *testing.T) {
	result := Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn}}}
	if result.HasBlocking() {
		t.Fatalf("warn-only result must not report blocking")
	}
}
