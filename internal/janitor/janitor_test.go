package janitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/plopez-famaf/sentra/internal/domain"
	"github.com/plopez-famaf/sentra/internal/pipeline"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SENTRA_CLEANUP_SCHEDULE", "@every 1m")
	t.Setenv("SENTRA_CLEANUP_MAX_AGE", "2h")

	cfg := ConfigFromEnv()
	if cfg.Schedule != "@every 1m" {
		t.Errorf("Schedule = %q, want @every 1m", cfg.Schedule)
	}
	if cfg.MaxAge != 2*time.Hour {
		t.Errorf("MaxAge = %v, want 2h", cfg.MaxAge)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("SENTRA_CLEANUP_SCHEDULE", "")
	t.Setenv("SENTRA_CLEANUP_MAX_AGE", "not-a-duration")

	cfg := ConfigFromEnv()
	if cfg.Schedule != DefaultSchedule {
		t.Errorf("Schedule = %q, want default", cfg.Schedule)
	}
	if cfg.MaxAge != DefaultMaxAge {
		t.Errorf("MaxAge = %v, want default", cfg.MaxAge)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	manager := pipeline.NewManager(pipeline.Config{Logger: logger})
	manager.RegisterExecutor("scan", pipeline.ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		return &domain.CommandResult{}, nil
	}))

	p, err := manager.CreatePipeline(context.Background(), "old", "",
		[]domain.Step{{ID: "s1", Command: "scan network"}}, nil)
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	if err := manager.ExecutePipeline(context.Background(), p.ID); err != nil {
		t.Fatalf("ExecutePipeline: %v", err)
	}

	// Нулевой порог: завершённые pipeline удаляются сразу
	j := New(manager, nil, Config{Schedule: DefaultSchedule, MaxAge: time.Nanosecond}, logger)

	time.Sleep(time.Millisecond)
	j.Sweep()

	if got := manager.Statistics().Total; got != 0 {
		t.Errorf("Total after sweep = %d, want 0", got)
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := pipeline.NewManager(pipeline.Config{Logger: logger})

	j := New(manager, nil, Config{Schedule: "not a cron expr", MaxAge: time.Hour}, logger)
	if err := j.Start(); err == nil {
		t.Error("Start() error = nil, want error for invalid schedule")
	}
}
