package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plopez-famaf/sentra/internal/domain"
)

// ExecutionRepo — репозиторий архива выполнений pipeline.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// ExecutionFilter — фильтр для списка выполнений.
type ExecutionFilter struct {
	Status domain.PipelineStatus
	Limit  int
	Offset int
}

// Insert сохраняет новое выполнение pipeline.
func (r *ExecutionRepo) Insert(ctx context.Context, p *domain.PipelineExecution) error {
	stepsJSON, err := json.Marshal(p.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	contextJSON, err := json.Marshal(p.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		INSERT INTO pipeline_executions (id, name, description, status, steps, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		nullString(p.Description),
		p.Status,
		stepsJSON,
		contextJSON,
		p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert pipeline execution: %w", err)
	}
	return nil
}

// Update обновляет изменяемую часть выполнения: статус, контекст,
// результаты, ошибки и временные метки.
func (r *ExecutionRepo) Update(ctx context.Context, p *domain.PipelineExecution) error {
	contextJSON, err := json.Marshal(p.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	resultsJSON, err := json.Marshal(p.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	errorsJSON, err := json.Marshal(p.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	query := `
		UPDATE pipeline_executions
		SET status = $2, context = $3, results = $4, errors = $5,
		    started_at = $6, completed_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Status,
		contextJSON,
		resultsJSON,
		errorsJSON,
		p.StartedAt,
		p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update pipeline execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает выполнение по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineExecution, error) {
	query := `
		SELECT id, name, description, status, steps, context, results, errors,
		       created_at, started_at, completed_at
		FROM pipeline_executions
		WHERE id = $1
	`
	return r.scanExecution(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список выполнений с фильтрацией.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.PipelineExecution, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, name, description, status, steps, context, results, errors,
		       created_at, started_at, completed_at
		FROM pipeline_executions
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list pipeline executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.PipelineExecution
	for rows.Next() {
		p, err := r.scanExecutionFromRows(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *p)
	}
	return executions, rows.Err()
}

// PurgeOlderThan удаляет завершённые выполнения, чьё completed_at
// старше maxAge. Возвращает количество удалённых записей.
func (r *ExecutionRepo) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)

	query := `
		DELETE FROM pipeline_executions
		WHERE completed_at IS NOT NULL AND completed_at < $1
	`
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge pipeline executions: %w", err)
	}
	return result.RowsAffected(), nil
}

// scanExecution сканирует одну строку в PipelineExecution.
func (r *ExecutionRepo) scanExecution(row pgx.Row) (*domain.PipelineExecution, error) {
	return scanExecutionRow(row)
}

// scanExecutionFromRows сканирует строку из курсора.
func (r *ExecutionRepo) scanExecutionFromRows(rows pgx.Rows) (*domain.PipelineExecution, error) {
	return scanExecutionRow(rows)
}

// scanExecutionRow — общий сканер строки.
func scanExecutionRow(row pgx.Row) (*domain.PipelineExecution, error) {
	var p domain.PipelineExecution
	var description *string
	var stepsJSON, contextJSON, resultsJSON, errorsJSON []byte

	err := row.Scan(
		&p.ID,
		&p.Name,
		&description,
		&p.Status,
		&stepsJSON,
		&contextJSON,
		&resultsJSON,
		&errorsJSON,
		&p.CreatedAt,
		&p.StartedAt,
		&p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan pipeline execution: %w", err)
	}

	if description != nil {
		p.Description = *description
	}
	if err := json.Unmarshal(stepsJSON, &p.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &p.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &p.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &p.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
	}

	return &p, nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
