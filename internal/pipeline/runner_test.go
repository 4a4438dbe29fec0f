package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plopez-famaf/sentra/internal/domain"
)

// discardLogger — логгер для тестов, пишущий в никуда.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRunner создаёт StepRunner с мгновенным sleep.
func newTestRunner(safety SafetyValidator, executors *ExecutorRegistry) *StepRunner {
	r := NewStepRunner(safety, executors, discardLogger())
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

// denyAllValidator — валидатор, запрещающий всё.
type denyAllValidator struct{}

func (denyAllValidator) Validate(context.Context, SafetyRequest) (*SafetyDecision, error) {
	return &SafetyDecision{Allowed: false, Reason: "blocked by policy", RiskLevel: "critical"}, nil
}

func TestStepRunnerSuccess(t *testing.T) {
	executors := NewExecutorRegistry()
	executors.Register("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		return &domain.CommandResult{Message: "done"}, nil
	}))

	runner := newTestRunner(nil, executors)
	step := &domain.Step{ID: "s1", Command: "scan network"}

	result, err := runner.Run(context.Background(), uuid.New(), step, nil)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if result.Message != "done" {
		t.Errorf("result.Message = %q, want %q", result.Message, "done")
	}
}

func TestStepRunnerRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32

	executors := NewExecutorRegistry()
	executors.Register("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		attempts.Add(1)
		return nil, errors.New("scanner unavailable")
	}))

	runner := newTestRunner(nil, executors)
	step := &domain.Step{ID: "s1", Command: "scan network", RetryCount: 2}

	_, err := runner.Run(context.Background(), uuid.New(), step, nil)
	if err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	// RetryCount=2 означает 3 попытки всего
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestStepRunnerRetrySucceeds(t *testing.T) {
	var attempts atomic.Int32

	executors := NewExecutorRegistry()
	executors.Register("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("transient failure")
		}
		return &domain.CommandResult{Message: "recovered"}, nil
	}))

	runner := newTestRunner(nil, executors)
	step := &domain.Step{ID: "s1", Command: "scan network", RetryCount: 3}

	result, err := runner.Run(context.Background(), uuid.New(), step, nil)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if result.Message != "recovered" {
		t.Errorf("result.Message = %q, want %q", result.Message, "recovered")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestStepRunnerBackoffDelays(t *testing.T) {
	executors := NewExecutorRegistry()
	executors.Register("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		return nil, errors.New("always fails")
	}))

	runner := NewStepRunner(nil, executors, discardLogger())

	var delays []time.Duration
	runner.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	step := &domain.Step{ID: "s1", Command: "scan network", RetryCount: 3}
	runner.Run(context.Background(), uuid.New(), step, nil)

	// 2^attempt секунд, attempt с 1; после последней попытки ожидания нет
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays count = %d, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delays[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestStepRunnerTimeout(t *testing.T) {
	executors := NewExecutorRegistry()
	executors.Register("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	runner := newTestRunner(nil, executors)
	step := &domain.Step{ID: "s1", Command: "scan network", Timeout: 20 * time.Millisecond}

	_, err := runner.Run(context.Background(), uuid.New(), step, nil)
	if !errors.Is(err, ErrStepTimeout) {
		t.Errorf("Run() error = %v, want ErrStepTimeout", err)
	}
}

func TestStepRunnerSafetyDenied(t *testing.T) {
	var called atomic.Bool

	executors := NewExecutorRegistry()
	executors.Register("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		called.Store(true)
		return &domain.CommandResult{}, nil
	}))

	runner := newTestRunner(denyAllValidator{}, executors)
	step := &domain.Step{ID: "s1", Command: "scan network"}

	_, err := runner.Run(context.Background(), uuid.New(), step, nil)
	if !errors.Is(err, ErrSafetyDenied) {
		t.Fatalf("Run() error = %v, want ErrSafetyDenied", err)
	}
	if called.Load() {
		t.Error("executor was called despite safety denial")
	}
}

func TestStepRunnerExecutorNotRegistered(t *testing.T) {
	runner := newTestRunner(nil, NewExecutorRegistry())
	step := &domain.Step{ID: "s1", Command: "exotic command"}

	_, err := runner.Run(context.Background(), uuid.New(), step, nil)
	if !errors.Is(err, ErrExecutorNotRegistered) {
		t.Errorf("Run() error = %v, want ErrExecutorNotRegistered", err)
	}
}

func TestStepRunnerNoRetryAfterCancel(t *testing.T) {
	var attempts atomic.Int32

	executors := NewExecutorRegistry()
	executors.Register("scan", ExecutorFunc(func(ctx context.Context, step *domain.Step, pc map[string]any) (*domain.CommandResult, error) {
		attempts.Add(1)
		return nil, errors.New("failure")
	}))

	ctx, cancel := context.WithCancel(context.Background())

	runner := NewStepRunner(nil, executors, discardLogger())
	runner.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	step := &domain.Step{ID: "s1", Command: "scan network", RetryCount: 5}

	_, err := runner.Run(ctx, uuid.New(), step, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry after cancel)", got)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := backoffDelay(tt.attempt); got != tt.want {
				t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}
