package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/plopez-famaf/sentra/internal/domain"
)

// Executor — интерфейс выполнения шага конкретного command type.
//
// pipelineContext — снимок общего контекста на момент диспетчеризации;
// его мутации не видны pipeline. ctx отменяется при таймауте шага,
// падении обязательного шага или отмене pipeline — executor обязан
// уважать отмену, принудительного прерывания нет.
type Executor interface {
	Execute(ctx context.Context, step *domain.Step, pipelineContext map[string]any) (*domain.CommandResult, error)
}

// ExecutorFunc — адаптер функции к интерфейсу Executor.
type ExecutorFunc func(ctx context.Context, step *domain.Step, pipelineContext map[string]any) (*domain.CommandResult, error)

// Execute реализует Executor.
func (f ExecutorFunc) Execute(ctx context.Context, step *domain.Step, pipelineContext map[string]any) (*domain.CommandResult, error) {
	return f(ctx, step, pipelineContext)
}

// ExecutorRegistry — реестр executor'ов по command type.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewExecutorRegistry создаёт пустой реестр.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[string]Executor)}
}

// Register добавляет executor для command type.
func (r *ExecutorRegistry) Register(commandType string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[commandType] = executor
}

// Get возвращает executor для command type.
func (r *ExecutorRegistry) Get(commandType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[commandType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotRegistered, commandType)
	}
	return executor, nil
}

// RollbackHandler — компенсирующее действие для command type.
//
// result — зафиксированный результат успешно завершённого шага.
type RollbackHandler interface {
	Rollback(ctx context.Context, step *domain.Step, result *domain.CommandResult) error
}

// RollbackFunc — адаптер функции к интерфейсу RollbackHandler.
type RollbackFunc func(ctx context.Context, step *domain.Step, result *domain.CommandResult) error

// Rollback реализует RollbackHandler.
func (f RollbackFunc) Rollback(ctx context.Context, step *domain.Step, result *domain.CommandResult) error {
	return f(ctx, step, result)
}

// RollbackRegistry — реестр rollback-обработчиков по command type.
// Для незарегистрированных типов возвращается no-op обработчик.
type RollbackRegistry struct {
	mu       sync.RWMutex
	handlers map[string]RollbackHandler
}

// NewRollbackRegistry создаёт пустой реестр.
func NewRollbackRegistry() *RollbackRegistry {
	return &RollbackRegistry{handlers: make(map[string]RollbackHandler)}
}

// Register добавляет rollback-обработчик для command type.
func (r *RollbackRegistry) Register(commandType string, handler RollbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[commandType] = handler
}

// Get возвращает обработчик для command type или no-op.
func (r *RollbackRegistry) Get(commandType string) RollbackHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handler, ok := r.handlers[commandType]; ok {
		return handler
	}
	return noopRollback{}
}

// noopRollback — обработчик по умолчанию: ничего не компенсирует.
type noopRollback struct{}

func (noopRollback) Rollback(context.Context, *domain.Step, *domain.CommandResult) error {
	return nil
}
