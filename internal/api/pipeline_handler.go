package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/plopez-famaf/sentra/internal/domain"
	"github.com/plopez-famaf/sentra/internal/repo"
)

// defaultCleanupMaxAge — возраст по умолчанию для POST /cleanup.
const defaultCleanupMaxAge = time.Hour

// CreatePipeline создаёт pipeline.
// POST /api/v1/pipelines
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if len(req.Steps) == 0 {
		BadRequest(w, "steps are required")
		return
	}

	steps := make([]domain.Step, len(req.Steps))
	for i, s := range req.Steps {
		steps[i] = s.ToDomain()
	}

	p, err := h.manager.CreatePipeline(r.Context(), req.Name, req.Description, steps, req.Context)
	if HandleManagerError(w, h.logger, err) {
		return
	}

	if req.Execute {
		h.startExecution(r.Context(), p.ID)
	}

	Created(w, PipelineFromDomain(p))
}

// ListPipelines возвращает список pipeline из реестра.
// GET /api/v1/pipelines?status=...
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	status := domain.PipelineStatus(r.URL.Query().Get("status"))

	all := h.manager.List()
	result := make([]PipelineSummaryResponse, 0, len(all))
	for _, p := range all {
		if status != "" && p.Status != status {
			continue
		}
		result = append(result, PipelineSummaryFromDomain(p))
	}

	List(w, result, len(result))
}

// GetPipeline возвращает pipeline по ID.
// GET /api/v1/pipelines/{id}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	p, err := h.manager.GetStatus(id)
	if HandleManagerError(w, h.logger, err) {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// ExecutePipeline ставит pipeline на выполнение.
// POST /api/v1/pipelines/{id}/execute
//
// Выполнение асинхронное: с настроенным publisher'ом запрос уходит в
// очередь, иначе запускается в локальной горутине. Ответ — 202 с
// текущим состоянием pipeline.
func (h *Handler) ExecutePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	p, err := h.manager.GetStatus(id)
	if HandleManagerError(w, h.logger, err) {
		return
	}
	if p.Status != domain.PipelineStatusPending {
		InvalidState(w, "pipeline is not in PENDING status")
		return
	}

	h.startExecution(r.Context(), id)

	Accepted(w, PipelineFromDomain(p))
}

// startExecution запускает выполнение: через очередь или локально.
func (h *Handler) startExecution(ctx context.Context, id uuid.UUID) {
	if h.publisher != nil {
		err := h.publisher.PublishExecute(ctx, id)
		if err == nil {
			return
		}
		h.logger.Warn("failed to enqueue execution, falling back to local",
			"pipeline_id", id,
			"error", err,
		)
	}

	go func() {
		if err := h.manager.ExecutePipeline(context.Background(), id); err != nil {
			h.logger.Warn("pipeline execution finished with error",
				"pipeline_id", id,
				"error", err,
			)
		}
	}()
}

// CancelPipeline отменяет pipeline.
// POST /api/v1/pipelines/{id}/cancel
func (h *Handler) CancelPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	if err := h.manager.Cancel(id); HandleManagerError(w, h.logger, err) {
		return
	}

	p, err := h.manager.GetStatus(id)
	if HandleManagerError(w, h.logger, err) {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// GetStatistics возвращает статистику реестра.
// GET /api/v1/stats
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	Success(w, h.manager.Statistics())
}

// Cleanup удаляет завершённые pipeline старше max_age_sec
// из реестра и архива.
// POST /api/v1/cleanup
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := defaultCleanupMaxAge

	var req CleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.MaxAgeSec > 0 {
		maxAge = time.Duration(req.MaxAgeSec * float64(time.Second))
	}

	resp := CleanupResponse{
		Removed:       h.manager.Cleanup(maxAge),
		ArchivePurged: -1,
	}

	if h.archive != nil {
		purged, err := h.archive.PurgeOlderThan(r.Context(), maxAge)
		if err != nil {
			h.logger.Warn("failed to purge archive", "error", err)
		} else {
			resp.ArchivePurged = purged
		}
	}

	Success(w, resp)
}

// ListArchive возвращает историю выполнений из архива.
// GET /api/v1/archive?status=...&limit=...&offset=...
func (h *Handler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		InvalidState(w, "archive is not configured")
		return
	}

	filter := repo.ExecutionFilter{
		Status: domain.PipelineStatus(r.URL.Query().Get("status")),
		Limit:  parseIntQuery(r, "limit", 50),
		Offset: parseIntQuery(r, "offset", 0),
	}

	executions, err := h.archive.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]PipelineSummaryResponse, len(executions))
	for i := range executions {
		result[i] = PipelineSummaryFromDomain(&executions[i])
	}

	List(w, result, len(result))
}

// GetArchived возвращает архивное выполнение по ID.
// GET /api/v1/archive/{id}
func (h *Handler) GetArchived(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		InvalidState(w, "archive is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	p, err := h.archive.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found in archive") {
		return
	}

	Success(w, PipelineFromDomain(p))
}

// parseIntQuery парсит целочисленный query-параметр с default значением.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
