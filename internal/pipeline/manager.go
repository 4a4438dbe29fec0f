package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plopez-famaf/sentra/internal/domain"
	"github.com/plopez-famaf/sentra/internal/engine"
	"github.com/plopez-famaf/sentra/internal/mq"
	"github.com/plopez-famaf/sentra/internal/repo"
	"github.com/plopez-famaf/sentra/internal/telemetry"
)

// persistTimeout — таймаут best-effort записи в архив и публикации событий.
const persistTimeout = 5 * time.Second

// Config — зависимости Manager.
//
// Archive и Publisher опциональны: без них реестр работает только в
// памяти, события жизненного цикла не публикуются.
type Config struct {
	// Safety — валидатор команд. nil — разрешать всё.
	Safety SafetyValidator

	// MaxConcurrentSteps — предел одновременно выполняемых шагов
	// в одном pipeline. 0 — значение по умолчанию.
	MaxConcurrentSteps int

	// Archive — репозиторий архива выполнений.
	Archive *repo.ExecutionRepo

	// Publisher — публикация событий жизненного цикла.
	Publisher *mq.Publisher

	Logger *slog.Logger
}

// Manager — реестр pipeline и точка входа всех операций жизненного
// цикла: создание, выполнение, статус, отмена, очистка.
type Manager struct {
	mu      sync.RWMutex
	handles map[uuid.UUID]*pipelineHandle

	executors *ExecutorRegistry
	rollbacks *RollbackRegistry
	scheduler *Scheduler
	archive   *repo.ExecutionRepo
	publisher *mq.Publisher
	logger    *slog.Logger
}

// pipelineHandle — pipeline вместе с его мьютексом и функцией отмены.
// Мьютекс защищает изменяемые поля exec; cancel не nil только пока
// pipeline выполняется.
type pipelineHandle struct {
	mu     sync.Mutex
	exec   *domain.PipelineExecution
	cancel context.CancelFunc
}

// NewManager создаёт Manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	executors := NewExecutorRegistry()
	rollbacks := NewRollbackRegistry()

	runner := NewStepRunner(cfg.Safety, executors, logger)
	coordinator := NewRollbackCoordinator(rollbacks, logger)

	m := &Manager{
		handles:   make(map[uuid.UUID]*pipelineHandle),
		executors: executors,
		rollbacks: rollbacks,
		archive:   cfg.Archive,
		publisher: cfg.Publisher,
		logger:    logger,
	}
	m.scheduler = NewScheduler(runner, coordinator, cfg.MaxConcurrentSteps, logger, m.publishStepEvent)

	return m
}

// RegisterExecutor регистрирует executor для command type.
func (m *Manager) RegisterExecutor(commandType string, executor Executor) {
	m.executors.Register(commandType, executor)
}

// RegisterRollbackHandler регистрирует компенсирующее действие для command type.
func (m *Manager) RegisterRollbackHandler(commandType string, handler RollbackHandler) {
	m.rollbacks.Register(commandType, handler)
}

// CreatePipeline валидирует шаги и регистрирует pipeline в статусе PENDING.
//
// Валидация и регистрация атомарны: невалидный набор шагов не оставляет
// следов в реестре. Возвращается снимок созданного pipeline.
func (m *Manager) CreatePipeline(ctx context.Context, name, description string, steps []domain.Step, initialContext map[string]any) (*domain.PipelineExecution, error) {
	result := engine.ValidateSteps(steps)
	if !result.Valid {
		return nil, result.Err()
	}

	p := domain.NewPipelineExecution(name, description, steps, initialContext)

	m.mu.Lock()
	m.handles[p.ID] = &pipelineHandle{exec: p}
	m.mu.Unlock()

	m.logger.Info("pipeline created",
		"pipeline_id", p.ID,
		"name", name,
		"steps", len(steps),
	)

	// Архив и события — best-effort: их недоступность не мешает работе
	if m.archive != nil {
		if err := m.archive.Insert(ctx, p); err != nil {
			m.logger.Warn("failed to archive pipeline", "pipeline_id", p.ID, "error", err)
		}
	}
	if m.publisher != nil {
		err := m.publisher.PublishPipelineCreated(ctx, mq.PipelineCreatedPayload{
			PipelineID: p.ID,
			Name:       name,
			Steps:      len(steps),
		})
		if err != nil {
			m.logger.Warn("failed to publish pipeline.created", "pipeline_id", p.ID, "error", err)
		}
	}

	return cloneExecution(p), nil
}

// ExecutePipeline выполняет pipeline до терминального состояния.
// Блокирует до завершения; вызывающий решает, запускать ли в горутине.
//
// Выполнение допустимо только из статуса PENDING — каждый pipeline
// выполняется не более одного раза.
func (m *Manager) ExecutePipeline(ctx context.Context, id uuid.UUID) error {
	h, err := m.handle(id)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.exec.Status != domain.PipelineStatusPending {
		status := h.exec.Status
		h.mu.Unlock()
		return fmt.Errorf("%w: current status is %s", ErrPipelineNotPending, status)
	}

	execCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.exec.MarkRunning()
	name := h.exec.Name
	h.mu.Unlock()

	defer cancel()

	telemetry.ActivePipelines.Inc()
	defer telemetry.ActivePipelines.Dec()

	logger := telemetry.WithPipelineID(m.logger, id.String())
	logger.Info("pipeline execution started", "name", name)

	// Логгер с pipeline_id доступен executor'ам через контекст
	execCtx = telemetry.WithLogger(execCtx, logger)

	runErr := m.scheduler.Run(execCtx, h.exec, &h.mu)

	h.mu.Lock()
	switch {
	case runErr == nil:
		h.exec.MarkCompleted()
	case h.exec.Status == domain.PipelineStatusCancelled:
		// Статус уже выставлен в Cancel
	default:
		h.exec.MarkFailed()
	}
	h.cancel = nil
	final := h.exec.Status
	duration := h.exec.Duration()
	h.mu.Unlock()

	telemetry.PipelinesTotal.WithLabelValues(string(final)).Inc()
	logger.Info("pipeline execution finished",
		"status", final,
		"duration", duration,
	)

	m.persistFinal(h)

	if runErr != nil {
		if final == domain.PipelineStatusCancelled {
			return runErr
		}
		return fmt.Errorf("%w: %w", ErrPipelineFailed, runErr)
	}
	return nil
}

// GetStatus возвращает снимок текущего состояния pipeline.
func (m *Manager) GetStatus(id uuid.UUID) (*domain.PipelineExecution, error) {
	h, err := m.handle(id)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneExecution(h.exec), nil
}

// List возвращает снимки всех зарегистрированных pipeline,
// отсортированные по времени создания (новые первыми).
func (m *Manager) List() []*domain.PipelineExecution {
	m.mu.RLock()
	handles := make([]*pipelineHandle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	executions := make([]*domain.PipelineExecution, 0, len(handles))
	for _, h := range handles {
		h.mu.Lock()
		executions = append(executions, cloneExecution(h.exec))
		h.mu.Unlock()
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})
	return executions
}

// Cancel отменяет выполняющийся pipeline.
//
// Действует только из статуса RUNNING: статус становится CANCELLED,
// in-flight шаги получают отмену контекста, rollback не выполняется.
// PENDING и терминальные статусы отмена не трогает — идемпотентный
// no-op. Неизвестный ID — ErrPipelineNotFound.
func (m *Manager) Cancel(id uuid.UUID) error {
	h, err := m.handle(id)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.exec.Status != domain.PipelineStatusRunning {
		h.mu.Unlock()
		return nil
	}
	h.exec.MarkCancelled()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	// Финализация в ExecutePipeline допишет метрику и архив
	if cancel != nil {
		cancel()
	}

	m.logger.Info("pipeline cancelled", "pipeline_id", id)
	return nil
}

// Cleanup удаляет из реестра завершённые pipeline, чьё completed_at
// старше maxAge. Возвращает количество удалённых.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, h := range m.handles {
		h.mu.Lock()
		expired := h.exec.Status.IsTerminal() &&
			h.exec.CompletedAt != nil &&
			h.exec.CompletedAt.Before(cutoff)
		h.mu.Unlock()

		if expired {
			delete(m.handles, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("cleaned up finished pipelines", "removed", removed, "max_age", maxAge)
	}
	return removed
}

// Statistics — агрегированная статистика реестра.
type Statistics struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	// StepsExecuted — суммарное число успешно завершённых шагов
	// (с зафиксированным результатом). Упавшие, пропущенные и ещё
	// не запускавшиеся шаги не считаются.
	StepsExecuted int `json:"steps_executed"`
}

// Statistics возвращает статистику по всем зарегистрированным pipeline.
func (m *Manager) Statistics() Statistics {
	m.mu.RLock()
	handles := make([]*pipelineHandle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	var stats Statistics
	stats.Total = len(handles)

	for _, h := range handles {
		h.mu.Lock()
		switch h.exec.Status {
		case domain.PipelineStatusPending:
			stats.Pending++
		case domain.PipelineStatusRunning:
			stats.Running++
		case domain.PipelineStatusCompleted:
			stats.Completed++
		case domain.PipelineStatusFailed:
			stats.Failed++
		case domain.PipelineStatusCancelled:
			stats.Cancelled++
		}
		stats.StepsExecuted += len(h.exec.Results)
		h.mu.Unlock()
	}
	return stats
}

// handle возвращает pipelineHandle по ID.
func (m *Manager) handle(id uuid.UUID) (*pipelineHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, id)
	}
	return h, nil
}

// persistFinal записывает терминальное состояние в архив и публикует
// событие завершения. Best-effort: ошибки только логируются.
func (m *Manager) persistFinal(h *pipelineHandle) {
	if m.archive == nil && m.publisher == nil {
		return
	}

	h.mu.Lock()
	snap := cloneExecution(h.exec)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if m.archive != nil {
		if err := m.archive.Update(ctx, snap); err != nil {
			m.logger.Warn("failed to archive pipeline state",
				"pipeline_id", snap.ID,
				"error", err,
			)
		}
	}

	if m.publisher != nil {
		payload := mq.PipelineCompletedPayload{
			PipelineID: snap.ID,
			Name:       snap.Name,
			Status:     string(snap.Status),
			DurationMs: snap.Duration().Milliseconds(),
		}
		if len(snap.Errors) > 0 {
			payload.Error = snap.Errors[len(snap.Errors)-1].Error
		}
		if err := m.publisher.PublishPipelineCompleted(ctx, payload); err != nil {
			m.logger.Warn("failed to publish pipeline.completed",
				"pipeline_id", snap.ID,
				"error", err,
			)
		}
	}
}

// publishStepEvent публикует событие завершения шага. Best-effort.
func (m *Manager) publishStepEvent(pipelineID uuid.UUID, stepID string, success bool, err error) {
	if m.publisher == nil {
		return
	}

	payload := mq.StepCompletedPayload{
		PipelineID: pipelineID,
		StepID:     stepID,
		Success:    success,
	}
	if err != nil {
		payload.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if perr := m.publisher.PublishStepCompleted(ctx, payload); perr != nil {
		m.logger.Warn("failed to publish step.completed",
			"pipeline_id", pipelineID,
			"step_id", stepID,
			"error", perr,
		)
	}
}

// cloneExecution — копия PipelineExecution с отвязанными изменяемыми
// полями. Steps разделяются: список шагов неизменяем после создания.
func cloneExecution(p *domain.PipelineExecution) *domain.PipelineExecution {
	clone := *p
	clone.Context = snapshotContext(p.Context)

	clone.Results = make(map[string]*domain.CommandResult, len(p.Results))
	for k, v := range p.Results {
		clone.Results[k] = v
	}

	clone.Errors = append([]domain.StepError(nil), p.Errors...)
	return &clone
}
