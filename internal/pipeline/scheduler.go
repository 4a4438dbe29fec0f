package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/plopez-famaf/sentra/internal/domain"
	"github.com/plopez-famaf/sentra/internal/engine"
	"github.com/plopez-famaf/sentra/internal/telemetry"
)

// defaultMaxConcurrentSteps — ограничение конкурентности по умолчанию.
const defaultMaxConcurrentSteps = 3

// StepEventFunc — уведомление о завершении шага (успех или падение).
// Вызывается вне блокировки pipeline.
type StepEventFunc func(pipelineID uuid.UUID, stepID string, success bool, err error)

// Scheduler — управляющий цикл одного pipeline.
//
// Состояние — три множества: queued (ещё не запущенные), running
// (диспетчеризованные), completed (с зафиксированным результатом).
// Одна итерация: вычислить готовые шаги → диспетчеризовать до лимита
// конкурентности → дождаться ПЕРВОГО завершения → обновить состояние.
//
// Scheduler — единственный писатель контекста pipeline; шаги получают
// снимок на момент диспетчеризации.
type Scheduler struct {
	runner        *StepRunner
	rollback      *RollbackCoordinator
	maxConcurrent int
	logger        *slog.Logger
	stepEvents    StepEventFunc
}

// NewScheduler создаёт Scheduler. stepEvents может быть nil.
func NewScheduler(runner *StepRunner, rollback *RollbackCoordinator, maxConcurrent int, logger *slog.Logger, stepEvents StepEventFunc) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentSteps
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:        runner,
		rollback:      rollback,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		stepEvents:    stepEvents,
	}
}

// stepOutcome — исход одного диспетчеризованного шага.
type stepOutcome struct {
	stepID string
	result *domain.CommandResult
	err    error
}

// Run выполняет pipeline до терминального состояния.
//
// mu защищает изменяемые поля p от конкурентного чтения (GetStatus во
// время выполнения); nil допустим, если p никто не читает параллельно.
//
// Возвращает nil при успешном опустошении queued и running; ошибку —
// при падении обязательного шага (с выполненным rollback), deadlock'е
// или отмене контекста. Статус pipeline выставляет вызывающий Manager.
func (s *Scheduler) Run(ctx context.Context, p *domain.PipelineExecution, mu sync.Locker) error {
	if mu == nil {
		mu = new(sync.Mutex)
	}

	logger := telemetry.WithPipelineID(s.logger, p.ID.String())

	// Контекст диспетчеризации: отменяется при падении обязательного
	// шага, чтобы кооперативно остановить in-flight шаги.
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// queued хранит порядок объявления шагов — среди готовых шагов
	// приоритет определяется порядком списка.
	queued := make([]string, 0, len(p.Steps))
	for i := range p.Steps {
		queued = append(queued, p.Steps[i].ID)
	}

	running := make(map[string]bool)
	completed := make(map[string]bool)

	// completedOrder — порядок завершения для rollback.
	completedOrder := make([]string, 0, len(p.Steps))

	// Буфер на все шаги: исходы, пришедшие после фатального падения,
	// не блокируют брошенные горутины.
	outcomes := make(chan stepOutcome, len(p.Steps))

	for {
		// 1-2. Готовность и диспетчеризация
		mu.Lock()
		remaining := queued[:0]
		for _, stepID := range queued {
			step := p.StepByID(stepID)

			if len(running) >= s.maxConcurrent || !depsSatisfied(step, completed) {
				remaining = append(remaining, stepID)
				continue
			}

			ready, err := engine.EvalCondition(step.Condition, p.Context)
			if err != nil {
				// Невалидное условие — падение самого шага
				logger.Warn("step condition evaluation failed",
					"step_id", stepID,
					"condition", step.Condition,
					"error", err,
				)
				condErr := fmt.Errorf("condition evaluation: %w", err)
				p.RecordError(stepID, condErr)
				if step.Optional {
					continue // шаг выбывает, pipeline продолжается
				}
				cancel()
				mu.Unlock()
				s.notifyStep(p.ID, stepID, false, condErr)
				s.rollback.Rollback(ctx, p, completedOrder)
				return fmt.Errorf("step %s: %w", stepID, condErr)
			}
			if !ready {
				remaining = append(remaining, stepID)
				continue
			}

			// Диспетчеризация
			running[stepID] = true
			p.CurrentStep = stepID
			snapshot := snapshotContext(p.Context)

			logger.Info("dispatching step",
				"step_id", stepID,
				"command_type", step.CommandType(),
				"running", len(running),
			)

			go func(step *domain.Step) {
				result, err := s.runner.Run(execCtx, p.ID, step, snapshot)
				outcomes <- stepOutcome{stepID: step.ID, result: result, err: err}
			}(step)
		}
		queued = remaining

		// 4. Deadlock: ничего не выполняется, ничего не готово, но очередь не пуста
		if len(running) == 0 {
			if len(queued) == 0 {
				mu.Unlock()
				return nil
			}
			stuck := strings.Join(queued, ", ")
			mu.Unlock()
			logger.Error("pipeline deadlock detected", "stuck_steps", stuck)
			return fmt.Errorf("%w: steps cannot proceed: %s", ErrDeadlock, stuck)
		}
		mu.Unlock()

		// 3. Ожидание первого завершения среди всех in-flight шагов
		select {
		case out := <-outcomes:
			mu.Lock()
			delete(running, out.stepID)
			step := p.StepByID(out.stepID)

			if out.err == nil {
				p.Results[out.stepID] = out.result
				applyResult(p.Context, step, out.result)
				completed[out.stepID] = true
				completedOrder = append(completedOrder, out.stepID)
				mu.Unlock()

				s.notifyStep(p.ID, out.stepID, true, nil)
				logger.Info("step completed",
					"step_id", out.stepID,
					"completed", len(completed),
					"total", len(p.Steps),
				)
				continue
			}

			p.RecordError(out.stepID, out.err)

			if step.Optional {
				// Падение поглощается; зависимые шаги никогда не станут
				// готовыми — это проявится как deadlock, если у них нет
				// другого пути.
				mu.Unlock()
				s.notifyStep(p.ID, out.stepID, false, out.err)
				logger.Warn("optional step failed, continuing",
					"step_id", out.stepID,
					"error", out.err,
				)
				continue
			}

			// Обязательный шаг упал: кооперативно останавливаем
			// in-flight шаги и компенсируем завершённые.
			cancel()
			mu.Unlock()

			s.notifyStep(p.ID, out.stepID, false, out.err)
			logger.Error("required step failed, aborting pipeline",
				"step_id", out.stepID,
				"error", out.err,
			)
			s.rollback.Rollback(ctx, p, completedOrder)
			return fmt.Errorf("step %s: %w", out.stepID, out.err)

		case <-ctx.Done():
			// Отмена pipeline: новые шаги не планируются,
			// in-flight шаги получают отмену контекста.
			logger.Info("pipeline execution cancelled",
				"queued", len(queued),
				"running", len(running),
			)
			return ctx.Err()
		}
	}
}

// notifyStep вызывает stepEvents, если он задан.
func (s *Scheduler) notifyStep(pipelineID uuid.UUID, stepID string, success bool, err error) {
	if s.stepEvents != nil {
		s.stepEvents(pipelineID, stepID, success, err)
	}
}

// depsSatisfied проверяет, что все зависимости шага в completed.
func depsSatisfied(step *domain.Step, completed map[string]bool) bool {
	for _, dep := range step.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}
