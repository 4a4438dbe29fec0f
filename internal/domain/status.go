package domain

// PipelineStatus — статус выполнения pipeline.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из RUNNING)
type PipelineStatus string

const (
	// PipelineStatusPending — pipeline создан, но ещё не запущен.
	PipelineStatusPending PipelineStatus = "PENDING"

	// PipelineStatusRunning — pipeline в процессе выполнения.
	PipelineStatusRunning PipelineStatus = "RUNNING"

	// PipelineStatusCompleted — все шаги завершены успешно
	// (включая поглощённые падения optional шагов).
	PipelineStatusCompleted PipelineStatus = "COMPLETED"

	// PipelineStatusFailed — обязательный шаг исчерпал попытки,
	// либо обнаружен deadlock.
	PipelineStatusFailed PipelineStatus = "FAILED"

	// PipelineStatusCancelled — pipeline отменён пользователем.
	PipelineStatusCancelled PipelineStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s PipelineStatus) IsTerminal() bool {
	switch s {
	case PipelineStatusCompleted, PipelineStatusFailed, PipelineStatusCancelled:
		return true
	default:
		return false
	}
}
