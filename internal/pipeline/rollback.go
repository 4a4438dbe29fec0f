package pipeline

import (
	"context"
	"log/slog"

	"github.com/plopez-famaf/sentra/internal/domain"
	"github.com/plopez-famaf/sentra/internal/telemetry"
)

// RollbackCoordinator выполняет компенсирующие действия при падении
// обязательного шага.
//
// Завершённые шаги обходятся в ОБРАТНОМ порядке завершения. Каждый
// вызов изолирован: ошибка или паника одного обработчика логируется
// и не мешает остальным. Исход rollback'а никогда не меняет статус
// pipeline — он остаётся FAILED.
type RollbackCoordinator struct {
	handlers *RollbackRegistry
	logger   *slog.Logger
}

// NewRollbackCoordinator создаёт RollbackCoordinator.
func NewRollbackCoordinator(handlers *RollbackRegistry, logger *slog.Logger) *RollbackCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RollbackCoordinator{
		handlers: handlers,
		logger:   logger,
	}
}

// Rollback компенсирует завершённые шаги pipeline.
// completedOrder — ID шагов в порядке их завершения.
func (c *RollbackCoordinator) Rollback(ctx context.Context, p *domain.PipelineExecution, completedOrder []string) {
	if len(completedOrder) == 0 {
		return
	}

	logger := telemetry.WithPipelineID(c.logger, p.ID.String())
	logger.Info("rolling back completed steps", "count", len(completedOrder))

	for i := len(completedOrder) - 1; i >= 0; i-- {
		stepID := completedOrder[i]
		step := p.StepByID(stepID)
		if step == nil {
			continue
		}

		c.rollbackStep(ctx, logger, step, p.Results[stepID])
	}
}

// rollbackStep выполняет один компенсирующий вызов с изоляцией паник.
func (c *RollbackCoordinator) rollbackStep(ctx context.Context, logger *slog.Logger, step *domain.Step, result *domain.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.RollbacksTotal.WithLabelValues("panic").Inc()
			logger.Error("rollback handler panicked",
				"step_id", step.ID,
				"command_type", step.CommandType(),
				"panic", r,
			)
		}
	}()

	handler := c.handlers.Get(step.CommandType())

	if err := handler.Rollback(ctx, step, result); err != nil {
		telemetry.RollbacksTotal.WithLabelValues("error").Inc()
		logger.Error("rollback handler failed",
			"step_id", step.ID,
			"command_type", step.CommandType(),
			"error", err,
		)
		return
	}

	telemetry.RollbacksTotal.WithLabelValues("success").Inc()
	logger.Debug("step rolled back", "step_id", step.ID)
}
