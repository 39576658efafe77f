package workerpool

import (
	"context"
	"time"

	"github.com/vnykmshr/asyncsched/pkg/metrics"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a new worker pool whose size, activity, queue depth,
// queue wait and recovered panics are reported to registry under name.
// A nil registry returns the plain pool.
func NewWithMetrics(config Config, name string, registry *metrics.Registry) Pool {
	if registry == nil {
		return NewWithConfig(config)
	}

	userPanic := config.PanicHandler
	config.PanicHandler = func(task Task, recovered interface{}) {
		registry.WorkerPoolPanics.WithLabelValues(name).Inc()
		if userPanic != nil {
			userPanic(task, recovered)
		}
	}

	mp := &MetricsPool{
		pool:     NewWithConfig(config),
		name:     name,
		registry: registry,
	}

	// Initialize metrics
	mp.updateMetrics()

	return mp
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	mp.registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(task Task) error {
	return mp.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext submits a task with a context for cancellation.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return mp.pool.SubmitWithContext(ctx, nil)
	}

	// Wrap the task to collect metrics
	wrappedTask := &metricsTask{
		original:   task,
		pool:       mp,
		submitTime: time.Now(),
	}

	err := mp.pool.SubmitWithContext(ctx, wrappedTask)
	mp.updateMetrics()

	return err
}

// metricsTask wraps a Task to collect queue metrics.
type metricsTask struct {
	original   Task
	pool       *MetricsPool
	submitTime time.Time
}

// Execute runs the original task and records metrics.
func (mt *metricsTask) Execute(ctx context.Context) error {
	mt.pool.registry.WorkerPoolQueueLag.WithLabelValues(mt.pool.name).Observe(time.Since(mt.submitTime).Seconds())
	mt.pool.updateMetrics()
	defer mt.pool.updateMetrics()

	return mt.original.Execute(ctx)
}

// Unwrap returns the task submitted by the caller.
func (mt *metricsTask) Unwrap() Task {
	return mt.original
}

// Shutdown initiates graceful shutdown of the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// ShutdownNow stops the pool immediately and returns the caller's discarded tasks.
func (mp *MetricsPool) ShutdownNow() []Task {
	discarded := mp.pool.ShutdownNow()
	for i, task := range discarded {
		discarded[i] = Unwrap(task)
	}
	mp.updateMetrics()
	return discarded
}

// Done returns a channel that closes once every worker has exited.
func (mp *MetricsPool) Done() <-chan struct{} {
	return mp.pool.Done()
}

// Size returns the current number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	queueSize := mp.pool.QueueSize()
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(queueSize))
	return queueSize
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (mp *MetricsPool) ActiveWorkers() int {
	activeWorkers := mp.pool.ActiveWorkers()
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(activeWorkers))
	return activeWorkers
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// Unwrap strips pool-internal wrappers from task.
func Unwrap(task Task) Task {
	for {
		u, ok := task.(interface{ Unwrap() Task })
		if !ok {
			return task
		}
		task = u.Unwrap()
	}
}
