/*
Package workerpool provides the bounded worker pool that executes every task
accepted by the scheduler.

A worker pool manages a fixed number of worker goroutines fed by an unbounded
FIFO queue. The worker side is bounded so that resource usage stays predictable;
the queue side is not, so that bursts never cause spurious rejections. There is
no backpressure: callers that can outrun the workers must throttle themselves.

Basic usage:

	pool := workerpool.New(32)
	defer func() { <-pool.Shutdown() }()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	if err := pool.Submit(task); err != nil {
		log.Printf("Failed to submit: %v", err)
	}

Task Interface:

Tasks implement a simple interface:

	type Task interface {
		Execute(ctx context.Context) error
	}

Configuration Options:

Lifecycle callbacks are available through the Config struct:

	config := workerpool.Config{
		WorkerCount: 8,
		PanicHandler: func(task workerpool.Task, recovered interface{}) {
			log.Printf("Task panicked: %v", recovered)
		},
		OnTaskComplete: func(workerID int, result workerpool.Result) {
			log.Printf("Worker %d completed task in %v", workerID, result.Duration)
		},
	}
	pool := workerpool.NewWithConfig(config)

Error Handling:

Task errors and recovered panics are reported through OnTaskComplete; a panic
becomes an *errors.TaskError of kind KindPanic carrying the stack trace. A
panicking task never takes its worker down.

Shutdown:

Shutdown is graceful: it stops accepting work, lets the queue drain and closes
the returned channel once the workers have exited. ShutdownNow is immediate: it
discards queued tasks (returning them so the caller can settle any handles),
cancels the contexts of running tasks and leaves them to finish cooperatively.
Both are idempotent; submitting afterwards fails with errors.ErrClosed.

Monitoring and Metrics:

	pool := workerpool.NewWithMetrics(config, "jobs", metrics.DefaultRegistry)

reports pool size, active workers, queue depth, queue wait and recovered panics.
*/
package workerpool
