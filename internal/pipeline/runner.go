package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/plopez-famaf/sentra/internal/domain"
	"github.com/plopez-famaf/sentra/internal/telemetry"
)

// defaultStepTimeout — таймаут попытки, если шаг не задал свой.
const defaultStepTimeout = 30 * time.Second

// StepRunner выполняет один шаг: safety-gate, поиск executor'а,
// попытки с таймаутом и экспоненциальным backoff.
//
// Runner никогда не пишет в контекст pipeline — результат складывает
// scheduler.
type StepRunner struct {
	safety    SafetyValidator
	executors *ExecutorRegistry
	logger    *slog.Logger

	// sleep — ожидание между попытками. Подменяется в тестах.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewStepRunner создаёт StepRunner.
func NewStepRunner(safety SafetyValidator, executors *ExecutorRegistry, logger *slog.Logger) *StepRunner {
	if safety == nil {
		safety = AllowAllValidator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StepRunner{
		safety:    safety,
		executors: executors,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Run выполняет шаг против снимка контекста pipeline.
//
//  1. Safety-gate: Allowed=false — обычное падение шага с причиной валидатора.
//  2. Поиск executor'а по command type. Отсутствие — фатальная ошибка
//     конфигурации, попытки не делаются.
//  3. До RetryCount+1 попыток; каждая — гонка executor'а с таймером
//     шага. Между попытками ожидание 2^attempt секунд (attempt с 1).
func (r *StepRunner) Run(ctx context.Context, pipelineID uuid.UUID, step *domain.Step, pipelineContext map[string]any) (*domain.CommandResult, error) {
	logger := telemetry.WithStepID(telemetry.WithPipelineID(r.logger, pipelineID.String()), step.ID)

	// 1. Safety-gate
	decision, err := r.safety.Validate(ctx, SafetyRequest{
		Command:    step.Command,
		Parameters: step.Params,
		Context:    pipelineContext,
		StepID:     step.ID,
		PipelineID: pipelineID,
	})
	if err != nil {
		return nil, fmt.Errorf("safety validation: %w", err)
	}
	if !decision.Allowed {
		telemetry.StepsExecutedTotal.WithLabelValues("denied").Inc()
		logger.Warn("step blocked by safety validator",
			"reason", decision.Reason,
			"risk_level", decision.RiskLevel,
		)
		return nil, fmt.Errorf("%w: %s", ErrSafetyDenied, decision.Reason)
	}

	// 2. Executor
	executor, err := r.executors.Get(step.CommandType())
	if err != nil {
		return nil, err
	}

	// 3. Попытки
	maxAttempts := step.RetryCount + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		result, err := r.attempt(ctx, executor, step, pipelineContext)
		telemetry.StepDuration.WithLabelValues(step.CommandType()).Observe(time.Since(start).Seconds())

		if err == nil {
			telemetry.StepsExecutedTotal.WithLabelValues("success").Inc()
			logger.Info("step succeeded", "attempt", attempt)
			return result, nil
		}

		lastErr = err
		if errors.Is(err, ErrStepTimeout) {
			telemetry.StepsExecutedTotal.WithLabelValues("timeout").Inc()
		}

		// Отмена pipeline — не повод для retry
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < maxAttempts {
			delay := backoffDelay(attempt)
			logger.Warn("step attempt failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
			telemetry.StepRetriesTotal.Inc()

			if serr := r.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
		}
	}

	telemetry.StepsExecutedTotal.WithLabelValues("failure").Inc()
	logger.Warn("step failed, retries exhausted",
		"attempts", maxAttempts,
		"error", lastErr,
	)
	return nil, lastErr
}

// attempt — одна попытка: executor против таймера шага, что раньше.
// Победа таймера даёт ErrStepTimeout; executor при этом получает отмену
// контекста, но принудительно не прерывается.
func (r *StepRunner) attempt(ctx context.Context, executor Executor, step *domain.Step, pipelineContext map[string]any) (*domain.CommandResult, error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *domain.CommandResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := executor.Execute(attemptCtx, step, pipelineContext)
		done <- outcome{result, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		return nil, ErrStepTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// backoffDelay вычисляет задержку перед следующей попыткой:
// 2^attempt секунд, attempt считается с 1.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// sleepCtx — ожидание с учётом отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
