// Package metrics provides Prometheus instrumentation for asyncsched components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for asyncsched components.
type Registry struct {
	// Task Metrics (labelled by scheduler name and task shape)
	TasksSubmitted        *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TasksCancelled        *prometheus.CounterVec
	TasksSlow             *prometheus.CounterVec
	TasksRejected         *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec

	// Timer Metrics
	TimersPending *prometheus.GaugeVec
	TimersFired   *prometheus.CounterVec

	// Worker Pool Metrics
	WorkerPoolSize     *prometheus.GaugeVec
	WorkerPoolActive   *prometheus.GaugeVec
	WorkerPoolQueued   *prometheus.GaugeVec
	WorkerPoolPanics   *prometheus.CounterVec
	WorkerPoolQueueLag *prometheus.HistogramVec
}

// DefaultRegistry is the default metrics registry used by asyncsched components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithNamespace(reg, DefaultNamespace)
}

// NewRegistryWithNamespace creates a registry whose metric names start with namespace.
func NewRegistryWithNamespace(reg prometheus.Registerer, namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Registry{
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks accepted by the scheduler",
			},
			[]string{"scheduler_name", "shape"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_completed_total",
				Help:      "Total number of task executions that finished without failure",
			},
			[]string{"scheduler_name", "shape"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_failed_total",
				Help:      "Total number of task executions that failed or panicked",
			},
			[]string{"scheduler_name", "shape"},
		),

		TasksCancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_cancelled_total",
				Help:      "Total number of task executions that observed cancellation",
			},
			[]string{"scheduler_name", "shape"},
		),

		TasksSlow: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_slow_total",
				Help:      "Total number of task executions that exceeded the slow-task threshold",
			},
			[]string{"scheduler_name", "shape"},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_rejected_total",
				Help:      "Total number of submissions rejected because the scheduler is stopped",
			},
			[]string{"scheduler_name", "shape"},
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"scheduler_name", "shape"},
		),

		TimersPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "timer",
				Name:      "pending",
				Help:      "Number of delayed or periodic tasks waiting for their fire time",
			},
			[]string{"scheduler_name"},
		),

		TimersFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "timer",
				Name:      "fired_total",
				Help:      "Total number of timer entries handed to the worker pool",
			},
			[]string{"scheduler_name"},
		),

		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "size",
				Help:      "Current worker pool size",
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "active_workers",
				Help:      "Number of active workers",
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "queued_tasks",
				Help:      "Number of queued tasks",
			},
			[]string{"pool_name"},
		),

		WorkerPoolPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "panics_total",
				Help:      "Total number of panics recovered by workers",
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueueLag: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "queue_wait_seconds",
				Help:      "Time tasks spent queued before a worker picked them up",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),
	}
}
