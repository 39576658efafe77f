package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
// Use SubmitWithContext to provide a custom context.
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext adds a task to the pool for execution with the given context.
// The queue is unbounded, so the call never waits for a free worker.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return aserrors.ErrNilTask
	}

	if ctx == nil {
		ctx = context.Background()
	}

	// Check if context is already canceled before attempting to queue
	// This ensures deterministic behavior for pre-canceled contexts
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cannot submit task: context canceled: %w", err)
	}

	p.mu.Lock()
	if p.isShutdown {
		p.mu.Unlock()
		return fmt.Errorf("cannot submit task: worker pool has been shut down: %w", aserrors.ErrClosed)
	}
	p.queue = append(p.queue, queuedTask{task: task, ctx: ctx, enqueuedAt: time.Now()})
	p.totalSubmitted.Add(1)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.mu.Lock()
	p.isShutdown = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.terminate()

	return p.done
}

// ShutdownNow stops the pool immediately and returns the tasks that never started.
func (p *workerPool) ShutdownNow() []Task {
	p.mu.Lock()
	if p.abandoned {
		p.mu.Unlock()
		return nil
	}
	p.isShutdown = true
	p.abandoned = true
	pending := p.queue
	p.queue = nil
	p.mu.Unlock()

	// Running tasks observe this through their context.
	p.cancel()
	p.cond.Broadcast()
	p.terminate()

	discarded := make([]Task, 0, len(pending))
	for _, qt := range pending {
		discarded = append(discarded, qt.task)
	}
	return discarded
}

func (p *workerPool) terminate() {
	p.terminateOnce.Do(func() {
		go func() {
			p.workerWg.Wait()
			p.cancel()
			close(p.done)
		}()
	})
}

// Done returns a channel that closes once all workers have exited.
func (p *workerPool) Done() <-chan struct{} {
	return p.done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks submitted to the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks completed by the pool.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// next blocks until a task is available or the pool is shutting down with an empty queue.
func (p *workerPool) next() (queuedTask, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.isShutdown {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return queuedTask{}, false
	}

	qt := p.queue[0]
	p.queue[0] = queuedTask{}
	p.queue = p.queue[1:]
	p.activeWorkers.Add(1)
	return qt, true
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	if w.pool.config.OnWorkerStart != nil {
		w.pool.config.OnWorkerStart(w.id)
	}
	if w.pool.config.OnWorkerStop != nil {
		defer w.pool.config.OnWorkerStop(w.id)
	}

	for {
		qt, ok := w.pool.next()
		if !ok {
			return
		}
		w.executeTask(qt)
	}
}

// executeTask executes a single task with the provided context.
func (w *worker) executeTask(qt queuedTask) {
	start := time.Now()
	var err error

	// The task sees its submission context, additionally cancelled by ShutdownNow.
	ctx, cancel := context.WithCancel(qt.ctx)
	stop := context.AfterFunc(w.pool.ctx, cancel)

	// Handle panics during task execution
	defer func() {
		if r := recover(); r != nil {
			err = aserrors.NewPanicError(fmt.Sprintf("%T", qt.task), r, debug.Stack())
			if w.pool.config.PanicHandler != nil {
				w.pool.config.PanicHandler(qt.task, r)
			}
		}

		stop()
		cancel()
		w.pool.activeWorkers.Add(-1)
		w.pool.totalCompleted.Add(1)

		if w.pool.config.OnTaskComplete != nil {
			w.pool.config.OnTaskComplete(w.id, Result{
				Task:      qt.task,
				Error:     err,
				Duration:  time.Since(start),
				QueueWait: start.Sub(qt.enqueuedAt),
				WorkerID:  w.id,
			})
		}
	}()

	if w.pool.config.OnTaskStart != nil {
		w.pool.config.OnTaskStart(w.id, qt.task)
	}

	err = qt.task.Execute(ctx)
}
