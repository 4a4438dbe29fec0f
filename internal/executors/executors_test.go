package executors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plopez-famaf/sentra/internal/domain"
)

func TestDelayExecutor(t *testing.T) {
	e := &DelayExecutor{}
	step := &domain.Step{
		ID:      "wait",
		Command: "delay before retry",
		Params:  map[string]any{"duration_sec": 0.01},
	}

	start := time.Now()
	result, err := e.Execute(context.Background(), step, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("delay returned too early")
	}
	if result.Data["delayed_sec"] != 0.01 {
		t.Errorf("delayed_sec = %v, want 0.01", result.Data["delayed_sec"])
	}
}

func TestDelayExecutorCancelled(t *testing.T) {
	e := &DelayExecutor{}
	step := &domain.Step{
		ID:      "wait",
		Command: "delay long",
		Params:  map[string]any{"duration_sec": 60},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.Execute(ctx, step, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestHTTPExecutorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("X-Api-Key = %q, want secret", r.Header.Get("X-Api-Key"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "accepted"}`))
	}))
	defer server.Close()

	e := &HTTPExecutor{}
	step := &domain.Step{
		ID:      "webhook",
		Command: "http post alert",
		Params: map[string]any{
			"method":  "POST",
			"url":     server.URL,
			"headers": map[string]any{"X-Api-Key": "secret"},
			"body":    map[string]any{"severity": "high"},
		},
	}

	result, err := e.Execute(context.Background(), step, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if result.Data["status_code"] != 200 {
		t.Errorf("status_code = %v, want 200", result.Data["status_code"])
	}
	body, ok := result.Data["body"].(map[string]any)
	if !ok || body["status"] != "accepted" {
		t.Errorf("body = %v, want parsed JSON with status accepted", result.Data["body"])
	}
}

func TestHTTPExecutorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	e := &HTTPExecutor{}
	step := &domain.Step{
		ID:      "webhook",
		Command: "http get status",
		Params:  map[string]any{"url": server.URL},
	}

	_, err := e.Execute(context.Background(), step, nil)
	if !errors.Is(err, ErrHTTPRequest) {
		t.Errorf("Execute() error = %v, want ErrHTTPRequest", err)
	}
}

func TestHTTPExecutorURLRequired(t *testing.T) {
	e := &HTTPExecutor{}
	step := &domain.Step{ID: "webhook", Command: "http get"}

	_, err := e.Execute(context.Background(), step, nil)
	if !errors.Is(err, ErrHTTPRequest) {
		t.Errorf("Execute() error = %v, want ErrHTTPRequest", err)
	}
}

func TestEchoExecutor(t *testing.T) {
	e := &EchoExecutor{}
	step := &domain.Step{
		ID:      "mark",
		Command: "echo approval",
		Params:  map[string]any{"approved": true},
	}

	result, err := e.Execute(context.Background(), step, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if result.Data["approved"] != true {
		t.Errorf("Data = %v, want approved=true", result.Data)
	}
}

func TestEchoExecutorNilParams(t *testing.T) {
	e := &EchoExecutor{}
	step := &domain.Step{ID: "mark", Command: "echo"}

	result, err := e.Execute(context.Background(), step, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if result.Data == nil {
		t.Error("Data = nil, want empty map")
	}
}
