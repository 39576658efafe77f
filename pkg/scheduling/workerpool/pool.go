package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// QueueWait is how long the task waited in the queue before a worker picked it up
	QueueWait time.Duration

	// WorkerID identifies which worker executed the task
	WorkerID int
}

// Pool represents a fixed-size worker pool fed by an unbounded FIFO queue.
type Pool interface {
	// Submit adds a task to the pool for execution. It never blocks.
	// Returns an error if the pool is shut down or the task is nil.
	Submit(task Task) error

	// SubmitWithContext submits a task whose execution context derives from ctx.
	// Cancelling ctx cancels the context the task observes; it does not remove
	// an already queued task.
	SubmitWithContext(ctx context.Context, task Task) error

	// Shutdown initiates a graceful shutdown of the pool.
	// No new tasks will be accepted, but queued tasks will be completed.
	// Returns a channel that closes when shutdown is complete.
	Shutdown() <-chan struct{}

	// ShutdownNow stops accepting tasks, discards the queued ones and cancels
	// the contexts of running ones. The discarded tasks are returned.
	// Calling it again returns nil.
	ShutdownNow() []Task

	// Done returns a channel that closes once every worker has exited.
	Done() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks submitted to the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed by the pool.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// PanicHandler is called when a worker recovers a panic during task execution.
	// The panic is converted into the task's error either way.
	PanicHandler func(task Task, recovered interface{})

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	OnWorkerStop func(workerID int)

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task Task)

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(workerID int, result Result)
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config

	// Queue state, guarded by mu. cond is signalled on enqueue and shutdown.
	mu         sync.Mutex
	cond       *sync.Cond
	queue      []queuedTask
	isShutdown bool
	abandoned  bool

	// ctx is cancelled by ShutdownNow and parents every running task's context.
	ctx    context.Context
	cancel context.CancelFunc

	activeWorkers  atomic.Int32
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	workerWg      sync.WaitGroup
	done          chan struct{}
	terminateOnce sync.Once
}

type queuedTask struct {
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
}

// worker represents a single worker in the pool.
type worker struct {
	id   int
	pool *workerPool
}

// New creates a new worker pool with the specified number of workers.
func New(workerCount int) Pool {
	return NewWithConfig(Config{WorkerCount: workerCount})
}

// NewWithConfig creates a new worker pool with the specified configuration.
func NewWithConfig(config Config) Pool {
	return newWorkerPool(config)
}

func newWorkerPool(config Config) *workerPool {
	if config.WorkerCount <= 0 {
		panic("worker count must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &workerPool{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	pool.cond = sync.NewCond(&pool.mu)

	for i := 0; i < config.WorkerCount; i++ {
		w := &worker{id: i, pool: pool}
		pool.workerWg.Add(1)
		go w.run()
	}

	return pool
}
