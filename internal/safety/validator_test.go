package safety

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/plopez-famaf/sentra/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRuleValidatorDefaults(t *testing.T) {
	v := NewDefaultValidator(testLogger())

	tests := []struct {
		name        string
		command     string
		wantAllowed bool
		wantRisk    string
	}{
		{"plain scan allowed", "scan network --deep", true, "low"},
		{"wipe blocked", "wipe disk /dev/sda", false, "critical"},
		{"format blocked", "format volume C", false, "critical"},
		{"mass delete blocked", "delete --all users", false, "critical"},
		{"block command high risk", "block ip 10.0.0.5", true, "high"},
		{"threat hunt medium risk", "threat hunt --window 24h", true, "medium"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := v.Validate(context.Background(), pipeline.SafetyRequest{Command: tt.command})
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if decision.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", decision.Allowed, tt.wantAllowed)
			}
			if decision.RiskLevel != tt.wantRisk {
				t.Errorf("RiskLevel = %q, want %q", decision.RiskLevel, tt.wantRisk)
			}
		})
	}
}

func TestRuleValidatorDenyReasonNamesRule(t *testing.T) {
	v := NewDefaultValidator(testLogger())

	decision, err := v.Validate(context.Background(), pipeline.SafetyRequest{Command: "wipe everything"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("Allowed = true, want false")
	}
	if decision.Reason == "" {
		t.Error("Reason is empty, want rule name")
	}
}

func TestRuleValidatorRequiresApproval(t *testing.T) {
	v := NewDefaultValidator(testLogger())

	decision, err := v.Validate(context.Background(), pipeline.SafetyRequest{Command: "isolate host ws-042"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !decision.Allowed {
		t.Fatal("Allowed = false, want true")
	}
	if !decision.RequiresApproval {
		t.Error("RequiresApproval = false, want true")
	}
	if decision.RiskLevel != "high" {
		t.Errorf("RiskLevel = %q, want high", decision.RiskLevel)
	}
}

func TestRuleValidatorCaseInsensitiveMatch(t *testing.T) {
	v := NewDefaultValidator(testLogger())

	decision, _ := v.Validate(context.Background(), pipeline.SafetyRequest{Command: "WIPE disk"})
	if decision.Allowed {
		t.Error("Allowed = true for uppercase destructive command, want false")
	}
}

func TestRuleValidatorHighestRiskWins(t *testing.T) {
	rules := []Rule{
		{Name: "medium", Match: CommandContains("scan"), RiskLevel: "medium"},
		{Name: "high", Match: CommandContains("prod"), RiskLevel: "high"},
	}
	v := NewRuleValidator(rules, testLogger())

	decision, _ := v.Validate(context.Background(), pipeline.SafetyRequest{Command: "scan prod segment"})
	if decision.RiskLevel != "high" {
		t.Errorf("RiskLevel = %q, want high", decision.RiskLevel)
	}
}
