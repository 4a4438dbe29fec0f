package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики ядра pipeline. Регистрируются в default registry,
// экспортируются сервером на /metrics.
var (
	// PipelinesTotal — завершённые pipelines по терминальному статусу.
	PipelinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_pipelines_total",
		Help: "Total finished pipelines by terminal status",
	}, []string{"status"})

	// ActivePipelines — количество выполняющихся pipelines.
	ActivePipelines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentra_active_pipelines",
		Help: "Number of currently running pipelines",
	})

	// StepsExecutedTotal — завершённые шаги по исходу.
	StepsExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_steps_executed_total",
		Help: "Total step executions by outcome (success, failure, timeout, denied)",
	}, []string{"outcome"})

	// StepRetriesTotal — количество повторных попыток шагов.
	StepRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentra_step_retries_total",
		Help: "Total step retry attempts",
	})

	// StepDuration — длительность выполнения шагов по command type.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentra_step_duration_seconds",
		Help:    "Step execution duration by command type",
		Buckets: prometheus.DefBuckets,
	}, []string{"command_type"})

	// RollbacksTotal — выполненные rollback-вызовы по исходу.
	RollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_rollbacks_total",
		Help: "Total rollback handler invocations by outcome",
	}, []string{"outcome"})
)
