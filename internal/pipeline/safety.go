package pipeline

import (
	"context"

	"github.com/google/uuid"
)

// SafetyRequest — запрос на проверку шага перед выполнением.
type SafetyRequest struct {
	// Command — полная командная строка шага.
	Command string `json:"command"`

	// Parameters — параметры шага.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Context — текущий контекст pipeline (снимок).
	Context map[string]any `json:"context,omitempty"`

	// StepID — ID проверяемого шага.
	StepID string `json:"step_id"`

	// PipelineID — ID pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`
}

// SafetyDecision — вердикт safety-валидатора.
type SafetyDecision struct {
	// Allowed — разрешено ли выполнение.
	Allowed bool `json:"allowed"`

	// Reason — причина запрета (при Allowed=false).
	Reason string `json:"reason,omitempty"`

	// RiskLevel — оценка риска: "low", "medium", "high", "critical".
	RiskLevel string `json:"risk_level,omitempty"`

	// RequiresApproval — команда требует ручного подтверждения.
	RequiresApproval bool `json:"requires_approval,omitempty"`
}

// SafetyValidator — внешний safety-гейт.
//
// Pipeline трактует Allowed=false как обычное падение шага с причиной
// валидатора (Optional шага учитывается как всегда).
type SafetyValidator interface {
	Validate(ctx context.Context, req SafetyRequest) (*SafetyDecision, error)
}

// AllowAllValidator — валидатор, разрешающий всё.
// Используется во встраиваемых сценариях и тестах.
type AllowAllValidator struct{}

// Validate всегда разрешает выполнение.
func (AllowAllValidator) Validate(context.Context, SafetyRequest) (*SafetyDecision, error) {
	return &SafetyDecision{Allowed: true, RiskLevel: "low"}, nil
}
