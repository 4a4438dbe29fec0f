package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/plopez-famaf/sentra/internal/domain"
)

// DelayExecutor — executor для command type "delay".
//
// Ожидает указанное количество секунд. Поддерживает отмену через context.
//
// Params:
//   - duration_sec (number): длительность задержки в секундах (default: 1)
type DelayExecutor struct{}

// Execute выполняет задержку.
func (e *DelayExecutor) Execute(ctx context.Context, step *domain.Step, _ map[string]any) (*domain.CommandResult, error) {
	durationSec := 1.0
	if val, ok := step.Params["duration_sec"]; ok {
		switch v := val.(type) {
		case float64:
			durationSec = v
		case int:
			durationSec = float64(v)
		}
	}

	if durationSec <= 0 {
		durationSec = 1
	}

	duration := time.Duration(durationSec * float64(time.Second))

	// Context-aware ожидание
	select {
	case <-time.After(duration):
		return &domain.CommandResult{
			Message: fmt.Sprintf("delayed %.1fs", durationSec),
			Data:    map[string]any{"delayed_sec": durationSec},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
