package pipeline

import "errors"

// Ошибки жизненного цикла pipeline.
var (
	// ErrPipelineNotFound — pipeline не найден в реестре.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrPipelineNotPending — execute вызван не из статуса PENDING.
	ErrPipelineNotPending = errors.New("pipeline is not in PENDING status")

	// ErrPipelineFailed — обязательный шаг исчерпал попытки.
	ErrPipelineFailed = errors.New("pipeline failed")

	// ErrDeadlock — остались queued шаги, но ни один не готов и ничего не выполняется.
	ErrDeadlock = errors.New("pipeline deadlock")
)

// Ошибки выполнения шагов.
var (
	// ErrExecutorNotRegistered — нет executor'а для command type.
	// Фатальная ошибка конфигурации, не ретраится.
	ErrExecutorNotRegistered = errors.New("no executor registered for command type")

	// ErrStepTimeout — попытка выполнения шага превысила таймаут.
	ErrStepTimeout = errors.New("step execution timeout")

	// ErrSafetyDenied — safety-валидатор запретил выполнение шага.
	// Трактуется как обычное падение шага (с учётом Optional).
	ErrSafetyDenied = errors.New("step blocked by safety validator")
)
