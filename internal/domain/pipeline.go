package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineExecution — один запуск набора шагов с общим контекстом.
//
// Пока pipeline выполняется, структурой монопольно владеет scheduler:
// Context и Results мутируются только между итерациями управляющего
// цикла. Results только растёт, никогда не сжимается.
type PipelineExecution struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя pipeline.
	Name string `json:"name"`

	// Description — описание назначения pipeline.
	Description string `json:"description,omitempty"`

	// Steps — неизменяемый список шагов.
	Steps []Step `json:"steps"`

	// Context — общий контекст pipeline: результаты шагов под ключами
	// step_<id> плюс извлечённые поля (lastThreats, authToken, ...).
	Context map[string]any `json:"context,omitempty"`

	// Status — текущий статус выполнения.
	Status PipelineStatus `json:"status"`

	// CurrentStep — ID шага, диспетчеризуемого в данный момент.
	// Информационное поле, не участвует в планировании.
	CurrentStep string `json:"current_step,omitempty"`

	// Results — успешные результаты шагов (stepID → CommandResult).
	Results map[string]*CommandResult `json:"results,omitempty"`

	// Errors — упорядоченный список падений шагов.
	Errors []StepError `json:"errors,omitempty"`

	// CreatedAt — время создания pipeline.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения (в любом терминальном статусе).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewPipelineExecution создаёт PipelineExecution в статусе PENDING.
// initialContext копируется, чтобы вызывающий код не разделял map с pipeline.
func NewPipelineExecution(name, description string, steps []Step, initialContext map[string]any) *PipelineExecution {
	ctx := make(map[string]any, len(initialContext))
	for k, v := range initialContext {
		ctx[k] = v
	}

	return &PipelineExecution{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Steps:       steps,
		Context:     ctx,
		Status:      PipelineStatusPending,
		Results:     make(map[string]*CommandResult),
		CreatedAt:   time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если pipeline ещё не завершён.
func (p *PipelineExecution) Duration() time.Duration {
	if p.StartedAt == nil || p.CompletedAt == nil {
		return 0
	}
	return p.CompletedAt.Sub(*p.StartedAt)
}

// IsFinished возвращает true, если pipeline завершён (в любом статусе).
func (p *PipelineExecution) IsFinished() bool {
	return p.Status.IsTerminal()
}

// StepByID возвращает шаг по ID или nil.
func (p *PipelineExecution) StepByID(stepID string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == stepID {
			return &p.Steps[i]
		}
	}
	return nil
}

// MarkRunning переводит pipeline в статус RUNNING.
func (p *PipelineExecution) MarkRunning() {
	now := time.Now()
	p.Status = PipelineStatusRunning
	p.StartedAt = &now
}

// MarkCompleted переводит pipeline в статус COMPLETED.
func (p *PipelineExecution) MarkCompleted() {
	now := time.Now()
	p.Status = PipelineStatusCompleted
	p.CompletedAt = &now
	p.CurrentStep = ""
}

// MarkFailed переводит pipeline в статус FAILED.
func (p *PipelineExecution) MarkFailed() {
	now := time.Now()
	p.Status = PipelineStatusFailed
	p.CompletedAt = &now
	p.CurrentStep = ""
}

// MarkCancelled переводит pipeline в статус CANCELLED.
func (p *PipelineExecution) MarkCancelled() {
	now := time.Now()
	p.Status = PipelineStatusCancelled
	p.CompletedAt = &now
	p.CurrentStep = ""
}

// RecordError добавляет запись о падении шага.
func (p *PipelineExecution) RecordError(stepID string, err error) {
	p.Errors = append(p.Errors, StepError{
		StepID:    stepID,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}
