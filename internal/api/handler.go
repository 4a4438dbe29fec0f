package api

import (
	"log/slog"

	"github.com/plopez-famaf/sentra/internal/mq"
	"github.com/plopez-famaf/sentra/internal/pipeline"
	"github.com/plopez-famaf/sentra/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
//
// Archive и Publisher опциональны: без архива недоступна история,
// без publisher'а выполнение запускается в локальной горутине вместо
// постановки в очередь.
type Handler struct {
	manager   *pipeline.Manager
	archive   *repo.ExecutionRepo
	publisher *mq.Publisher
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Manager   *pipeline.Manager
	Archive   *repo.ExecutionRepo
	Publisher *mq.Publisher
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		manager:   cfg.Manager,
		archive:   cfg.Archive,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
}
