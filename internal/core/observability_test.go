package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "autosave_patch", true, 10*time.Millisecond)
	rec.Observe(ctx, "autosave_patch", true, 5*time.Millisecond)
	rec.Observe(ctx, "autosave_patch", false, 2*time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond) // ignored

	snap := rec.Snapshot()
	if snap.DurationsMS["autosave_patch"] != 17 {
		t.Fatalf("duration total = %v, want 17", snap.DurationsMS["autosave_patch"])
	}
	if snap.Results["autosave_patch"]["success"] != 2 {
		t.Fatalf("success count = %d, want 2", snap.Results["autosave_patch"]["success"])
	}
	if snap.Results["autosave_patch"]["error"] != 1 {
		t.Fatalf("error count = %d, want 1", snap.Results["autosave_patch"]["error"])
	}
	if rec.Name() == "" {
		t.Fatalf("generated expvar name missing")
	}
}

func TestJSONTracerRecordsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(context.Background(), "promote_draft")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "promote_draft")
	span.End(fmt.Errorf("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" {
		t.Fatalf("unexpected span statuses: %+v", entries)
	}
	if entries[1].Error != "boom" {
		t.Fatalf("error message missing: %+v", entries[1])
	}

	dec := json.NewDecoder(&buf)
	var first JSONTraceEntry
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode emitted span: %v", err)
	}
	if first.Operation != "promote_draft" {
		t.Fatalf("emitted operation = %q", first.Operation)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(registry)

	rec.Observe(context.Background(), "autosave_patch", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "autosave_patch", false, 20*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond) // ignored

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := map[string]bool{}
	for _, fam := range families {
		byName[fam.GetName()] = true
	}
	if !byName["haccpcore_operation_duration_seconds"] {
		t.Fatalf("duration histogram not registered: %v", byName)
	}
	if !byName["haccpcore_operation_results_total"] {
		t.Fatalf("result counter not registered: %v", byName)
	}
}
