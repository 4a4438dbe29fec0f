package executors

import (
	"context"

	"github.com/plopez-famaf/sentra/internal/domain"
)

// EchoExecutor — executor для command type "echo".
//
// Возвращает params шага как data результата. Command type без правила
// извлечения, поэтому data сливается прямо в контекст pipeline —
// удобный способ прокинуть значения между шагами и в условия.
type EchoExecutor struct{}

// Execute возвращает params как data.
func (e *EchoExecutor) Execute(_ context.Context, step *domain.Step, _ map[string]any) (*domain.CommandResult, error) {
	data := step.Params
	if data == nil {
		data = make(map[string]any)
	}

	return &domain.CommandResult{
		Message: "echo",
		Data:    data,
	}, nil
}
