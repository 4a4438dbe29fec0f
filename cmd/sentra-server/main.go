// Sentra server — реестр и исполнитель command pipeline.
//
// Один процесс объединяет HTTP API, выполнение pipeline, потребление
// очереди запросов и периодическую очистку. PostgreSQL (архив) и
// RabbitMQ (события, очередь выполнения) опциональны: без DB_URL и
// RABBITMQ_URL сервер работает в in-memory режиме.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plopez-famaf/sentra/internal/api"
	"github.com/plopez-famaf/sentra/internal/executors"
	"github.com/plopez-famaf/sentra/internal/janitor"
	"github.com/plopez-famaf/sentra/internal/mq"
	"github.com/plopez-famaf/sentra/internal/pipeline"
	"github.com/plopez-famaf/sentra/internal/repo"
	"github.com/plopez-famaf/sentra/internal/safety"
	"github.com/plopez-famaf/sentra/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting sentra-server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Архив (опционально, по DB_URL)
	var archive *repo.ExecutionRepo
	if os.Getenv("DB_URL") != "" {
		pool, err := repo.NewPool(ctx)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		archive = repo.NewExecutionRepo(pool)
		logger.Info("connected to database")
	} else {
		logger.Info("DB_URL not set, archive disabled")
	}

	// RabbitMQ (опционально, по RABBITMQ_URL)
	var conn *mq.Connection
	var publisher *mq.Publisher
	if os.Getenv("RABBITMQ_URL") != "" {
		var err error
		conn, err = mq.NewConnection(mq.URLFromEnv(), logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(conn); err != nil {
			logger.Error("failed to setup MQ topology", "error", err)
			os.Exit(1)
		}
		publisher = mq.NewPublisher(conn, logger)
		logger.Info("connected to RabbitMQ")
	} else {
		logger.Info("RABBITMQ_URL not set, events and execution queue disabled")
	}

	// Manager с safety-гейтом и встроенными executor'ами
	manager := pipeline.NewManager(pipeline.Config{
		Safety:             safety.NewDefaultValidator(logger),
		MaxConcurrentSteps: maxConcurrentFromEnv(),
		Archive:            archive,
		Publisher:          publisher,
		Logger:             logger,
	})
	manager.RegisterExecutor("delay", &executors.DelayExecutor{})
	manager.RegisterExecutor("http", &executors.HTTPExecutor{})
	manager.RegisterExecutor("echo", &executors.EchoExecutor{})

	// Consumer очереди выполнения
	if conn != nil {
		consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
			Queue:    mq.QueuePipelinesExecute,
			Prefetch: 1,
			Handler: func(ctx context.Context, msg *mq.Delivery) error {
				payload, err := mq.ParsePayload[mq.ExecutePayload](&msg.Message)
				if err != nil {
					return err
				}
				// Ошибка выполнения — терминальное состояние pipeline,
				// а не повод возвращать сообщение в очередь
				if err := manager.ExecutePipeline(ctx, payload.PipelineID); err != nil {
					logger.Warn("queued pipeline execution finished with error",
						"pipeline_id", payload.PipelineID,
						"error", err,
					)
				}
				return nil
			},
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	// Janitor
	j := janitor.New(manager, archive, janitor.ConfigFromEnv(), logger)
	if err := j.Start(); err != nil {
		logger.Error("failed to start janitor", "error", err)
		os.Exit(1)
	}
	defer j.Stop()

	// HTTP API
	handler := api.NewHandler(api.Config{
		Manager:   manager,
		Archive:   archive,
		Publisher: publisher,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// maxConcurrentFromEnv читает предел конкурентности из SENTRA_MAX_CONCURRENT_STEPS.
func maxConcurrentFromEnv() int {
	if v := os.Getenv("SENTRA_MAX_CONCURRENT_STEPS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return 0 // значение по умолчанию выберет Manager
}
