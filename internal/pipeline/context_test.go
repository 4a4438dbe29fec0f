package pipeline

import (
	"testing"

	"github.com/plopez-famaf/sentra/internal/domain"
)

func TestApplyResultScanExtraction(t *testing.T) {
	ctx := map[string]any{}
	step := &domain.Step{ID: "sweep", Command: "scan network --deep"}
	result := &domain.CommandResult{
		Message: "scan finished",
		Data: map[string]any{
			"threats":         []any{"trojan"},
			"vulnerabilities": []any{"CVE-2026-0001"},
			"hosts":           12,
		},
	}

	applyResult(ctx, step, result)

	if _, ok := ctx["lastThreats"]; !ok {
		t.Error("missing lastThreats")
	}
	if _, ok := ctx["lastVulnerabilities"]; !ok {
		t.Error("missing lastVulnerabilities")
	}
	// Поля вне правила не поднимаются для известного command type
	if _, ok := ctx["hosts"]; ok {
		t.Error("unexpected top-level hosts key for scan command")
	}
}

func TestApplyResultAuthExtraction(t *testing.T) {
	ctx := map[string]any{}
	step := &domain.Step{ID: "login", Command: "auth login --mfa"}
	result := &domain.CommandResult{
		Data: map[string]any{"token": "tok-1", "user": "analyst"},
	}

	applyResult(ctx, step, result)

	if ctx["authToken"] != "tok-1" {
		t.Errorf("authToken = %v, want tok-1", ctx["authToken"])
	}
	if ctx["currentUser"] != "analyst" {
		t.Errorf("currentUser = %v, want analyst", ctx["currentUser"])
	}
}

func TestApplyResultThreatExtraction(t *testing.T) {
	ctx := map[string]any{}
	step := &domain.Step{ID: "hunt", Command: "threat hunt"}
	result := &domain.CommandResult{
		Data: map[string]any{
			"events":     []any{"e1"},
			"indicators": []any{"i1"},
		},
	}

	applyResult(ctx, step, result)

	if _, ok := ctx["threatEvents"]; !ok {
		t.Error("missing threatEvents")
	}
	if _, ok := ctx["threatIndicators"]; !ok {
		t.Error("missing threatIndicators")
	}
}

func TestApplyResultGenericMerge(t *testing.T) {
	ctx := map[string]any{"existing": 1}
	step := &domain.Step{ID: "notify", Command: "notify team --channel ops"}
	result := &domain.CommandResult{
		Data: map[string]any{"delivered": true, "channel": "ops"},
	}

	applyResult(ctx, step, result)

	if ctx["delivered"] != true {
		t.Errorf("delivered = %v, want true", ctx["delivered"])
	}
	if ctx["channel"] != "ops" {
		t.Errorf("channel = %v, want ops", ctx["channel"])
	}
	if ctx["existing"] != 1 {
		t.Errorf("existing = %v, want 1 (untouched)", ctx["existing"])
	}
}

func TestApplyResultStepResultKey(t *testing.T) {
	ctx := map[string]any{}
	step := &domain.Step{ID: "s1", Command: "scan network"}
	result := &domain.CommandResult{Message: "ok", Data: map[string]any{"threats": nil}}

	applyResult(ctx, step, result)

	entry, ok := ctx["step_s1"].(map[string]any)
	if !ok {
		t.Fatalf("step_s1 = %T, want map", ctx["step_s1"])
	}
	if entry["message"] != "ok" {
		t.Errorf("step_s1.message = %v, want ok", entry["message"])
	}
}

func TestApplyResultNilData(t *testing.T) {
	ctx := map[string]any{}
	step := &domain.Step{ID: "s1", Command: "scan network"}

	applyResult(ctx, step, &domain.CommandResult{Message: "done"})

	if len(ctx) != 1 {
		t.Errorf("len(ctx) = %d, want 1 (only step_s1)", len(ctx))
	}
}

func TestSnapshotContextIsolated(t *testing.T) {
	original := map[string]any{"a": 1}
	snapshot := snapshotContext(original)

	snapshot["b"] = 2
	if _, ok := original["b"]; ok {
		t.Error("mutation of snapshot leaked into original")
	}
}
