package domain

import "time"

// CommandResult — результат успешного выполнения шага.
//
// Непрозрачный payload executor'а. Data используется для извлечения
// полей в контекст pipeline (по command type).
type CommandResult struct {
	// Message — человекочитаемое описание результата.
	Message string `json:"message,omitempty"`

	// Data — выходные данные команды.
	// Например, для scan: {"threats": [...], "vulnerabilities": [...]}
	Data map[string]any `json:"data,omitempty"`
}

// StepError — запись о падении шага.
type StepError struct {
	// StepID — ID упавшего шага.
	StepID string `json:"step_id"`

	// Error — текст ошибки.
	Error string `json:"error"`

	// Timestamp — время фиксации падения.
	Timestamp time.Time `json:"timestamp"`
}
