package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/plopez-famaf/sentra/internal/pipeline"
	"github.com/plopez-famaf/sentra/internal/repo"
	"github.com/robfig/cron/v3"
)

// Значения по умолчанию.
const (
	DefaultSchedule = "@every 10m"
	DefaultMaxAge   = 24 * time.Hour
)

// Config — конфигурация Janitor.
type Config struct {
	// Schedule — cron-выражение запуска очистки.
	Schedule string

	// MaxAge — возраст завершённых pipeline для удаления.
	MaxAge time.Duration
}

// ConfigFromEnv читает конфигурацию из окружения:
// SENTRA_CLEANUP_SCHEDULE и SENTRA_CLEANUP_MAX_AGE.
func ConfigFromEnv() Config {
	cfg := Config{
		Schedule: DefaultSchedule,
		MaxAge:   DefaultMaxAge,
	}

	if v := os.Getenv("SENTRA_CLEANUP_SCHEDULE"); v != "" {
		cfg.Schedule = v
	}
	if v := os.Getenv("SENTRA_CLEANUP_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.MaxAge = d
		}
	}
	return cfg
}

// Janitor — периодическая очистка по cron-расписанию.
type Janitor struct {
	manager *pipeline.Manager
	archive *repo.ExecutionRepo
	cfg     Config
	logger  *slog.Logger
	cron    *cron.Cron
}

// New создаёт Janitor. archive может быть nil.
func New(manager *pipeline.Manager, archive *repo.ExecutionRepo, cfg Config, logger *slog.Logger) *Janitor {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		manager: manager,
		archive: archive,
		cfg:     cfg,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start запускает расписание очистки.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.cfg.Schedule, j.Sweep); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", j.cfg.Schedule, err)
	}

	j.cron.Start()
	j.logger.Info("janitor started",
		"schedule", j.cfg.Schedule,
		"max_age", j.cfg.MaxAge,
	)
	return nil
}

// Stop останавливает расписание и ждёт завершения текущего прохода.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("janitor stopped")
}

// Sweep выполняет один проход очистки.
func (j *Janitor) Sweep() {
	removed := j.manager.Cleanup(j.cfg.MaxAge)

	var purged int64
	if j.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := j.archive.PurgeOlderThan(ctx, j.cfg.MaxAge)
		if err != nil {
			j.logger.Warn("archive purge failed", "error", err)
		} else {
			purged = n
		}
	}

	if removed > 0 || purged > 0 {
		j.logger.Info("cleanup sweep finished",
			"registry_removed", removed,
			"archive_purged", purged,
		)
	}
}
