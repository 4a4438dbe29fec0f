package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
	mux.Handle("GET /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("POST /api/v1/pipelines/{id}/execute", chain(http.HandlerFunc(h.ExecutePipeline)))
	mux.Handle("POST /api/v1/pipelines/{id}/cancel", chain(http.HandlerFunc(h.CancelPipeline)))

	// Registry operations
	mux.Handle("GET /api/v1/stats", chain(http.HandlerFunc(h.GetStatistics)))
	mux.Handle("POST /api/v1/cleanup", chain(http.HandlerFunc(h.Cleanup)))

	// Archive
	mux.Handle("GET /api/v1/archive", chain(http.HandlerFunc(h.ListArchive)))
	mux.Handle("GET /api/v1/archive/{id}", chain(http.HandlerFunc(h.GetArchived)))
}
