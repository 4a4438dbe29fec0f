package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/plopez-famaf/sentra/internal/domain"
)

// CreatePipelineRequest — запрос на создание pipeline.
type CreatePipelineRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []StepRequest  `json:"steps"`
	Context     map[string]any `json:"context,omitempty"`

	// Execute — сразу поставить pipeline на выполнение.
	Execute bool `json:"execute,omitempty"`
}

// StepRequest — шаг в запросе создания.
type StepRequest struct {
	ID         string         `json:"id"`
	Command    string         `json:"command"`
	Params     map[string]any `json:"params,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Optional   bool           `json:"optional,omitempty"`
	TimeoutSec float64        `json:"timeout_sec,omitempty"`
	RetryCount int            `json:"retry_count,omitempty"`
	Condition  string         `json:"condition,omitempty"`
}

// ToDomain преобразует StepRequest в domain.Step.
func (r StepRequest) ToDomain() domain.Step {
	return domain.Step{
		ID:         r.ID,
		Command:    r.Command,
		Params:     r.Params,
		DependsOn:  r.DependsOn,
		Optional:   r.Optional,
		Timeout:    time.Duration(r.TimeoutSec * float64(time.Second)),
		RetryCount: r.RetryCount,
		Condition:  r.Condition,
	}
}

// CleanupRequest — запрос на очистку реестра.
type CleanupRequest struct {
	// MaxAgeSec — возраст завершённых pipeline для удаления, в секундах.
	MaxAgeSec float64 `json:"max_age_sec"`
}

// CleanupResponse — результат очистки.
type CleanupResponse struct {
	// Removed — удалено из реестра.
	Removed int `json:"removed"`

	// ArchivePurged — удалено из архива (-1, если архив не настроен).
	ArchivePurged int64 `json:"archive_purged"`
}

// PipelineResponse — представление pipeline в API.
type PipelineResponse struct {
	ID          uuid.UUID                        `json:"id"`
	Name        string                           `json:"name"`
	Description string                           `json:"description,omitempty"`
	Status      domain.PipelineStatus            `json:"status"`
	CurrentStep string                           `json:"current_step,omitempty"`
	Steps       []domain.Step                    `json:"steps,omitempty"`
	Context     map[string]any                   `json:"context,omitempty"`
	Results     map[string]*domain.CommandResult `json:"results,omitempty"`
	Errors      []domain.StepError               `json:"errors,omitempty"`
	CreatedAt   time.Time                        `json:"created_at"`
	StartedAt   *time.Time                       `json:"started_at,omitempty"`
	CompletedAt *time.Time                       `json:"completed_at,omitempty"`
	DurationMs  int64                            `json:"duration_ms,omitempty"`
}

// PipelineFromDomain преобразует domain.PipelineExecution в DTO.
func PipelineFromDomain(p *domain.PipelineExecution) PipelineResponse {
	return PipelineResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		CurrentStep: p.CurrentStep,
		Steps:       p.Steps,
		Context:     p.Context,
		Results:     p.Results,
		Errors:      p.Errors,
		CreatedAt:   p.CreatedAt,
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
		DurationMs:  p.Duration().Milliseconds(),
	}
}

// PipelineSummaryResponse — краткое представление для списков.
type PipelineSummaryResponse struct {
	ID          uuid.UUID             `json:"id"`
	Name        string                `json:"name"`
	Status      domain.PipelineStatus `json:"status"`
	StepCount   int                   `json:"step_count"`
	ErrorCount  int                   `json:"error_count,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// PipelineSummaryFromDomain преобразует pipeline в краткое представление.
func PipelineSummaryFromDomain(p *domain.PipelineExecution) PipelineSummaryResponse {
	return PipelineSummaryResponse{
		ID:          p.ID,
		Name:        p.Name,
		Status:      p.Status,
		StepCount:   len(p.Steps),
		ErrorCount:  len(p.Errors),
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
}
