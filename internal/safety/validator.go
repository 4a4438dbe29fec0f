package safety

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/plopez-famaf/sentra/internal/pipeline"
)

// Rule — одно правило проверки команды.
type Rule struct {
	// Name — имя правила для логов и причины отказа.
	Name string

	// Match возвращает true, если правило применимо к команде.
	Match func(req pipeline.SafetyRequest) bool

	// Deny — блокировать команду при срабатывании.
	Deny bool

	// RiskLevel — уровень риска при срабатывании: low, medium, high, critical.
	RiskLevel string

	// RequiresApproval — требует ручного подтверждения.
	RequiresApproval bool
}

// RuleValidator — валидатор на упорядоченном списке правил.
//
// Правила проверяются по порядку; первое сработавшее deny-правило
// блокирует команду. Разрешающие правила только поднимают risk level
// (берётся максимальный из сработавших). Команда без сработавших
// правил разрешается с уровнем low.
type RuleValidator struct {
	rules  []Rule
	logger *slog.Logger
}

// NewRuleValidator создаёт валидатор с заданными правилами.
func NewRuleValidator(rules []Rule, logger *slog.Logger) *RuleValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleValidator{rules: rules, logger: logger}
}

// NewDefaultValidator создаёт валидатор с правилами по умолчанию:
// блок деструктивных команд, повышенный риск для активных действий.
func NewDefaultValidator(logger *slog.Logger) *RuleValidator {
	return NewRuleValidator(DefaultRules(), logger)
}

// Validate реализует pipeline.SafetyValidator.
func (v *RuleValidator) Validate(_ context.Context, req pipeline.SafetyRequest) (*pipeline.SafetyDecision, error) {
	decision := &pipeline.SafetyDecision{Allowed: true, RiskLevel: "low"}

	for _, rule := range v.rules {
		if !rule.Match(req) {
			continue
		}

		if rule.Deny {
			v.logger.Warn("command blocked by safety rule",
				"rule", rule.Name,
				"step_id", req.StepID,
				"pipeline_id", req.PipelineID,
				"command", req.Command,
			)
			return &pipeline.SafetyDecision{
				Allowed:   false,
				Reason:    fmt.Sprintf("blocked by rule %q", rule.Name),
				RiskLevel: rule.RiskLevel,
			}, nil
		}

		if riskRank(rule.RiskLevel) > riskRank(decision.RiskLevel) {
			decision.RiskLevel = rule.RiskLevel
		}
		if rule.RequiresApproval {
			decision.RequiresApproval = true
		}
	}

	return decision, nil
}

// riskRank — порядок уровней риска для сравнения.
func riskRank(level string) int {
	switch level {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

// CommandContains возвращает Match-функцию по подстроке команды
// (без учёта регистра).
func CommandContains(substr string) func(pipeline.SafetyRequest) bool {
	lowered := strings.ToLower(substr)
	return func(req pipeline.SafetyRequest) bool {
		return strings.Contains(strings.ToLower(req.Command), lowered)
	}
}

// CommandTypeIs возвращает Match-функцию по первому слову команды.
func CommandTypeIs(commandType string) func(pipeline.SafetyRequest) bool {
	return func(req pipeline.SafetyRequest) bool {
		fields := strings.Fields(req.Command)
		return len(fields) > 0 && fields[0] == commandType
	}
}

// DefaultRules — правила по умолчанию.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "block-destructive-wipe",
			Match:     CommandContains("wipe"),
			Deny:      true,
			RiskLevel: "critical",
		},
		{
			Name:      "block-destructive-format",
			Match:     CommandContains("format"),
			Deny:      true,
			RiskLevel: "critical",
		},
		{
			Name:      "block-mass-delete",
			Match:     CommandContains("delete --all"),
			Deny:      true,
			RiskLevel: "critical",
		},
		{
			Name:             "isolate-requires-approval",
			Match:            CommandTypeIs("isolate"),
			RiskLevel:        "high",
			RequiresApproval: true,
		},
		{
			Name:      "active-response-high-risk",
			Match:     CommandTypeIs("block"),
			RiskLevel: "high",
		},
		{
			Name:      "threat-hunting-medium-risk",
			Match:     CommandTypeIs("threat"),
			RiskLevel: "medium",
		},
	}
}
