package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plopez-famaf/sentra/internal/domain"
	"github.com/plopez-famaf/sentra/internal/engine"
)

// newTestManager собирает Manager без архива и publisher'а.
func newTestManager() *Manager {
	m := NewManager(Config{Logger: discardLogger()})
	m.RegisterExecutor("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		return &domain.CommandResult{Message: "ok"}, nil
	}))
	return m
}

func TestManagerCreateValidatesSteps(t *testing.T) {
	m := newTestManager()

	// Цикл a → b → a
	steps := []domain.Step{
		{ID: "a", Command: "scan x", DependsOn: []string{"b"}},
		{ID: "b", Command: "scan y", DependsOn: []string{"a"}},
	}

	_, err := m.CreatePipeline(context.Background(), "cyclic", "", steps, nil)
	if !errors.Is(err, engine.ErrInvalidGraph) {
		t.Fatalf("CreatePipeline() error = %v, want ErrInvalidGraph", err)
	}

	// Невалидный pipeline не регистрируется
	if got := m.Statistics().Total; got != 0 {
		t.Errorf("Statistics().Total = %d, want 0", got)
	}
}

func TestManagerExecuteLifecycle(t *testing.T) {
	m := newTestManager()

	steps := []domain.Step{{ID: "s1", Command: "scan network"}}
	p, err := m.CreatePipeline(context.Background(), "lifecycle", "", steps, nil)
	if err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}
	if p.Status != domain.PipelineStatusPending {
		t.Fatalf("status after create = %s, want PENDING", p.Status)
	}

	if err := m.ExecutePipeline(context.Background(), p.ID); err != nil {
		t.Fatalf("ExecutePipeline() error = %v, want nil", err)
	}

	got, err := m.GetStatus(p.ID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.Status != domain.PipelineStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("timestamps not set after execution")
	}
	if _, ok := got.Results["s1"]; !ok {
		t.Error("Results missing s1")
	}

	// Повторный запуск запрещён
	err = m.ExecutePipeline(context.Background(), p.ID)
	if !errors.Is(err, ErrPipelineNotPending) {
		t.Errorf("second ExecutePipeline() error = %v, want ErrPipelineNotPending", err)
	}
}

func TestManagerExecuteFailedPipeline(t *testing.T) {
	m := NewManager(Config{Logger: discardLogger()})
	m.RegisterExecutor("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		return nil, errors.New("scanner offline")
	}))

	steps := []domain.Step{{ID: "s1", Command: "scan network"}}
	p, _ := m.CreatePipeline(context.Background(), "failing", "", steps, nil)

	err := m.ExecutePipeline(context.Background(), p.ID)
	if !errors.Is(err, ErrPipelineFailed) {
		t.Fatalf("ExecutePipeline() error = %v, want ErrPipelineFailed", err)
	}

	got, _ := m.GetStatus(p.ID)
	if got.Status != domain.PipelineStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if len(got.Errors) == 0 {
		t.Error("Errors empty after failed execution")
	}
}

func TestManagerUnknownPipeline(t *testing.T) {
	m := newTestManager()
	id := uuid.New()

	if err := m.ExecutePipeline(context.Background(), id); !errors.Is(err, ErrPipelineNotFound) {
		t.Errorf("ExecutePipeline() error = %v, want ErrPipelineNotFound", err)
	}
	if _, err := m.GetStatus(id); !errors.Is(err, ErrPipelineNotFound) {
		t.Errorf("GetStatus() error = %v, want ErrPipelineNotFound", err)
	}
	if err := m.Cancel(id); !errors.Is(err, ErrPipelineNotFound) {
		t.Errorf("Cancel() error = %v, want ErrPipelineNotFound", err)
	}
}

func TestManagerCancelPendingIsNoop(t *testing.T) {
	m := newTestManager()

	steps := []domain.Step{{ID: "s1", Command: "scan network"}}
	p, _ := m.CreatePipeline(context.Background(), "pending-cancel", "", steps, nil)

	// Отмена действует только из RUNNING: PENDING остаётся нетронутым
	if err := m.Cancel(p.ID); err != nil {
		t.Fatalf("Cancel() error = %v, want nil", err)
	}

	got, _ := m.GetStatus(p.ID)
	if got.Status != domain.PipelineStatusPending {
		t.Fatalf("status after Cancel = %s, want PENDING", got.Status)
	}

	// Pipeline по-прежнему выполним
	if err := m.ExecutePipeline(context.Background(), p.ID); err != nil {
		t.Fatalf("ExecutePipeline() after Cancel error = %v, want nil", err)
	}

	got, _ = m.GetStatus(p.ID)
	if got.Status != domain.PipelineStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
}

func TestManagerCancelRunning(t *testing.T) {
	started := make(chan struct{})

	m := NewManager(Config{Logger: discardLogger()})
	m.RegisterExecutor("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	steps := []domain.Step{{ID: "slow", Command: "scan forever", Timeout: time.Minute}}
	p, _ := m.CreatePipeline(context.Background(), "running-cancel", "", steps, nil)

	done := make(chan error, 1)
	go func() {
		done <- m.ExecutePipeline(context.Background(), p.ID)
	}()

	<-started
	if err := m.Cancel(p.ID); err != nil {
		t.Fatalf("Cancel() error = %v, want nil", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ExecutePipeline did not return after cancel")
	}

	got, _ := m.GetStatus(p.ID)
	if got.Status != domain.PipelineStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}

	// Отмена терминального pipeline — no-op
	if err := m.Cancel(p.ID); err != nil {
		t.Errorf("Cancel() after termination error = %v, want nil", err)
	}
}

func TestManagerCleanup(t *testing.T) {
	m := newTestManager()

	steps := []domain.Step{{ID: "s1", Command: "scan network"}}

	old, _ := m.CreatePipeline(context.Background(), "old", "", steps, nil)
	m.ExecutePipeline(context.Background(), old.ID)

	fresh, _ := m.CreatePipeline(context.Background(), "fresh", "", steps, nil)
	m.ExecutePipeline(context.Background(), fresh.ID)

	pending, _ := m.CreatePipeline(context.Background(), "pending", "", steps, nil)

	// Состариваем завершение первого pipeline
	m.mu.RLock()
	h := m.handles[old.ID]
	m.mu.RUnlock()
	past := time.Now().Add(-2 * time.Hour)
	h.mu.Lock()
	h.exec.CompletedAt = &past
	h.mu.Unlock()

	removed := m.Cleanup(time.Hour)
	if removed != 1 {
		t.Fatalf("Cleanup() = %d, want 1", removed)
	}

	if _, err := m.GetStatus(old.ID); !errors.Is(err, ErrPipelineNotFound) {
		t.Error("old pipeline still present after cleanup")
	}
	if _, err := m.GetStatus(fresh.ID); err != nil {
		t.Error("fresh pipeline removed by cleanup")
	}
	if _, err := m.GetStatus(pending.ID); err != nil {
		t.Error("pending pipeline removed by cleanup")
	}
}

func TestManagerStatistics(t *testing.T) {
	m := NewManager(Config{Logger: discardLogger()})
	m.RegisterExecutor("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		if step.ID == "bad" {
			return nil, errors.New("failure")
		}
		return &domain.CommandResult{}, nil
	}))

	okSteps := []domain.Step{{ID: "s1", Command: "scan a"}, {ID: "s2", Command: "scan b"}}
	badSteps := []domain.Step{{ID: "bad", Command: "scan c"}}

	done, _ := m.CreatePipeline(context.Background(), "done", "", okSteps, nil)
	m.ExecutePipeline(context.Background(), done.ID)

	failed, _ := m.CreatePipeline(context.Background(), "failed", "", badSteps, nil)
	m.ExecutePipeline(context.Background(), failed.ID)

	m.CreatePipeline(context.Background(), "waiting", "", okSteps, nil)

	stats := m.Statistics()
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Completed != 1 {
		t.Errorf("Completed = %d, want 1", stats.Completed)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Pending != 1 {
		t.Errorf("Pending = %d, want 1", stats.Pending)
	}
	// Упавший шаг не фиксирует результат и в счётчик не входит
	if stats.StepsExecuted != 2 {
		t.Errorf("StepsExecuted = %d, want 2", stats.StepsExecuted)
	}
}

func TestManagerList(t *testing.T) {
	m := newTestManager()

	steps := []domain.Step{{ID: "s1", Command: "scan network"}}
	m.CreatePipeline(context.Background(), "first", "", steps, nil)
	m.CreatePipeline(context.Background(), "second", "", steps, nil)

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(list))
	}
}

func TestManagerGetStatusReturnsSnapshot(t *testing.T) {
	m := newTestManager()

	steps := []domain.Step{{ID: "s1", Command: "scan network"}}
	p, _ := m.CreatePipeline(context.Background(), "snapshot", "", steps, map[string]any{"env": "prod"})

	snap, _ := m.GetStatus(p.ID)
	snap.Context["env"] = "tampered"
	snap.Results["fake"] = &domain.CommandResult{}

	again, _ := m.GetStatus(p.ID)
	if again.Context["env"] != "prod" {
		t.Error("mutation of snapshot context leaked into registry")
	}
	if len(again.Results) != 0 {
		t.Error("mutation of snapshot results leaked into registry")
	}
}
