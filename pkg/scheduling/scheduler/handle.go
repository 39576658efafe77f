package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/decorator"
)

// Cancellable is implemented by handles whose pending executions can be stopped.
type Cancellable interface {
	Cancel()
}

// Cancel stops c. Nil handles and handles that already finished are ignored.
func Cancel(c Cancellable) {
	if c == nil {
		return
	}
	c.Cancel()
}

// aborter is implemented by pool tasks that settle their handle when the
// scheduler discards them.
type aborter interface {
	abort(err error)
}

// Handle tracks a fire-and-forget submission.
type Handle struct {
	id   string
	done chan struct{}
	once sync.Once
	err  error
}

func newHandle() *Handle {
	return &Handle{id: uuid.NewString(), done: make(chan struct{})}
}

// ID returns the unique identifier of the submission.
func (h *Handle) ID() string { return h.id }

// Done returns a channel that closes when the task has finished or was discarded.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task finishes or ctx is done. Ordinary failures of
// the body are absorbed, so the result is nil unless the execution was
// cancelled or discarded by Shutdown.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

type runTask struct {
	handle *Handle
	body   *decorator.WrappedRunnable
}

func (t *runTask) Execute(ctx context.Context) error {
	err := t.body.Run(ctx)
	t.handle.complete(err)
	return err
}

func (t *runTask) abort(err error) { t.handle.complete(err) }

// Future tracks a submission that produces a value of type T.
type Future[T any] struct {
	id    string
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{id: uuid.NewString(), done: make(chan struct{})}
}

// ID returns the unique identifier of the submission.
func (f *Future[T]) ID() string { return f.id }

// Done returns a channel that closes when the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Get waits for the result. The error is exactly the one the body returned,
// a *errors.TaskError for a panic, or errors.ErrStopped if the task was
// discarded by Shutdown. If ctx is done first, its error is returned.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

type callTask[T any] struct {
	future *Future[T]
	body   *decorator.WrappedCallable[T]
}

func (t *callTask[T]) Execute(ctx context.Context) error {
	v, err := t.body.Call(ctx)
	t.future.complete(v, err)
	return err
}

func (t *callTask[T]) abort(err error) {
	var zero T
	t.future.complete(zero, err)
}

// nextFunc returns the fire time following the completion of run number
// completed, or false when no further run is due.
type nextFunc func(completed int64, now time.Time) (time.Time, bool)

func runOnce(int64, time.Time) (time.Time, bool) { return time.Time{}, false }

// fixedRate schedules run k at first + k*period. A run whose nominal time
// has already passed fires as soon as the previous one completes.
func fixedRate(first time.Time, period time.Duration) nextFunc {
	return func(completed int64, _ time.Time) (time.Time, bool) {
		return first.Add(time.Duration(completed) * period), true
	}
}

// ScheduledHandle tracks a delayed, periodic or cron submission.
//
// Executions of one handle never overlap: the next fire time is armed only
// after the current execution returns.
type ScheduledHandle struct {
	id        string
	s         *Scheduler
	body      *decorator.WrappedRunnable
	next      nextFunc
	ctx       context.Context
	cancelCtx context.CancelFunc
	done      chan struct{}
	runs      atomic.Int64

	mu        sync.Mutex
	entry     *timerEntry
	nextRun   time.Time
	running   bool
	cancelled bool
	finished  bool
	err       error
}

func newScheduledHandle(s *Scheduler, body *decorator.WrappedRunnable, next nextFunc) *ScheduledHandle {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScheduledHandle{
		id:        uuid.NewString(),
		s:         s,
		body:      body,
		next:      next,
		ctx:       ctx,
		cancelCtx: cancel,
		done:      make(chan struct{}),
	}
}

// ID returns the unique identifier of the submission.
func (h *ScheduledHandle) ID() string { return h.id }

// Done returns a channel that closes once no further execution can happen.
func (h *ScheduledHandle) Done() <-chan struct{} { return h.done }

// Runs returns the number of executions that have completed.
func (h *ScheduledHandle) Runs() int64 { return h.runs.Load() }

// NextRun returns the pending fire time, or the zero time if none is armed.
func (h *ScheduledHandle) NextRun() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entry == nil {
		return time.Time{}
	}
	return h.nextRun
}

// Cancelled reports whether Cancel was called before the handle finished.
func (h *ScheduledHandle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Err returns why the handle finished: nil after the single run of a delayed
// task, errors.ErrCancelled after Cancel, errors.ErrStopped after Shutdown,
// or the cancellation signal a run returned. It is nil while the handle is live.
func (h *ScheduledHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the handle finishes or ctx is done.
func (h *ScheduledHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel prevents every execution that has not started yet and cancels the
// context of a running one. Cancelling a finished or nil handle does nothing.
func (h *ScheduledHandle) Cancel() {
	if h == nil {
		return
	}

	h.mu.Lock()
	if h.cancelled || h.finished {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	if h.entry != nil {
		h.s.timers.remove(h.entry)
		h.entry = nil
	}
	running := h.running
	if !running {
		h.finishLocked(aserrors.ErrCancelled)
	}
	h.mu.Unlock()

	h.cancelCtx()
	h.s.logger.WithFields(logrus.Fields{
		"handle":  h.id,
		"task":    h.body.Describe(),
		"running": running,
	}).Debug("scheduled task cancelled")
}

// arm registers the next fire time. The caller holds h.mu.
func (h *ScheduledHandle) arm(at time.Time) bool {
	e := h.s.timers.add(at, h)
	if e == nil {
		return false
	}
	h.entry = e
	h.nextRun = at
	return true
}

// fire is called by the timer goroutine when the armed time is reached.
func (h *ScheduledHandle) fire() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entry = nil
	if h.cancelled || h.finished {
		return
	}
	if err := h.s.pool.SubmitWithContext(h.ctx, h); err != nil {
		h.finishLocked(aserrors.ErrStopped)
	}
}

// Execute runs one execution on a pool worker.
func (h *ScheduledHandle) Execute(ctx context.Context) error {
	h.mu.Lock()
	if h.cancelled || h.finished {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	err := h.body.Run(ctx)
	completed := h.runs.Add(1)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.running = false
	switch {
	case h.finished:
	case h.cancelled:
		h.finishLocked(aserrors.ErrCancelled)
	case err != nil:
		h.finishLocked(err)
	default:
		at, ok := h.next(completed, time.Now())
		if !ok {
			h.finishLocked(nil)
		} else if !h.arm(at) {
			h.finishLocked(aserrors.ErrStopped)
		}
	}
	return err
}

func (h *ScheduledHandle) abort(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entry = nil
	h.finishLocked(err)
}

func (h *ScheduledHandle) finishLocked(err error) {
	if h.finished {
		return
	}
	h.finished = true
	h.err = err
	close(h.done)
	h.cancelCtx()
}
