package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
	"github.com/vnykmshr/asyncsched/pkg/common/validation"
	"github.com/vnykmshr/asyncsched/pkg/metrics"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/decorator"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/workerpool"
)

const (
	// DefaultName labels logs and metrics of a scheduler created without a name.
	DefaultName = "asyncsched"

	// DefaultWorkerCount is the number of pool workers.
	DefaultWorkerCount = 32
)

// Config holds scheduler configuration.
type Config struct {
	// Name labels log entries and metrics. Default: "asyncsched".
	Name string

	// WorkerCount bounds concurrent executions. Default: 32.
	WorkerCount int

	// SlowTaskThreshold is the execution time above which a completed task
	// is reported as slow. Default: 500ms.
	SlowTaskThreshold time.Duration

	// Logger receives task failures, slow-task warnings and lifecycle events.
	// Default: the logrus standard logger.
	Logger logrus.FieldLogger

	// Metrics records scheduler, pool and timer metrics when set.
	Metrics *metrics.Registry

	// Location is the time zone cron expressions are evaluated in. Default: time.Local.
	Location *time.Location

	// Clock times task executions. Default: wall clock.
	Clock decorator.Clock
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Name:              DefaultName,
		WorkerCount:       DefaultWorkerCount,
		SlowTaskThreshold: decorator.DefaultSlowTaskThreshold,
		Location:          time.Local,
	}
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.WorkerCount == 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.SlowTaskThreshold == 0 {
		c.SlowTaskThreshold = decorator.DefaultSlowTaskThreshold
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

func (c *Config) validate() error {
	if err := validation.ValidatePositive("scheduler", "WorkerCount", c.WorkerCount); err != nil {
		return err
	}
	return validation.ValidateNonNegativeDuration("scheduler", "SlowTaskThreshold", c.SlowTaskThreshold)
}

// Stats is a point-in-time snapshot of a scheduler.
type Stats struct {
	Name                string `json:"name"`
	Workers             int    `json:"workers"`
	ActiveWorkers       int    `json:"active_workers"`
	QueuedTasks         int    `json:"queued_tasks"`
	PendingTimers       int    `json:"pending_timers"`
	TotalSubmitted      int64  `json:"total_submitted"`
	TotalCompleted      int64  `json:"total_completed"`
	SlowTaskThresholdMS int64  `json:"slow_task_threshold_ms"`
	Stopped             bool   `json:"stopped"`
}

// Scheduler runs task bodies on a bounded worker pool, immediately, after a
// delay, at a fixed rate or on a cron schedule. Every body is wrapped by the
// scheduler's Decorator before it reaches the pool.
//
// Submission never blocks: work beyond the worker count waits in an
// unbounded queue. A Scheduler is safe for concurrent use.
type Scheduler struct {
	name      string
	logger    logrus.FieldLogger
	registry  *metrics.Registry
	location  *time.Location
	pool      workerpool.Pool
	timers    *timerQueue
	decorator *decorator.Decorator

	stopped      atomic.Bool
	shutdownOnce sync.Once
	terminated   chan struct{}
}

// New creates a running scheduler.
func New(cfg Config) (*Scheduler, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger.WithField("scheduler", cfg.Name)
	s := &Scheduler{
		name:       cfg.Name,
		logger:     logger,
		registry:   cfg.Metrics,
		location:   cfg.Location,
		terminated: make(chan struct{}),
		decorator: decorator.New(
			decorator.WithLogger(logger),
			decorator.WithClock(cfg.Clock),
			decorator.WithThreshold(cfg.SlowTaskThreshold),
			decorator.WithMetrics(cfg.Metrics, cfg.Name),
		),
	}

	s.pool = workerpool.NewWithMetrics(workerpool.Config{
		WorkerCount: cfg.WorkerCount,
		PanicHandler: func(task workerpool.Task, recovered interface{}) {
			logger.WithFields(logrus.Fields{
				"task":  fmt.Sprintf("%T", task),
				"panic": recovered,
			}).Error("worker recovered panic")
		},
	}, cfg.Name, cfg.Metrics)
	s.timers = newTimerQueue(cfg.Name, cfg.Metrics)

	logger.WithFields(logrus.Fields{
		"workers":           cfg.WorkerCount,
		"slow_threshold_ms": cfg.SlowTaskThreshold.Milliseconds(),
	}).Debug("scheduler started")

	return s, nil
}

// Name returns the scheduler name.
func (s *Scheduler) Name() string { return s.name }

// Submit runs body as soon as a worker is free. Failures of body are logged
// and never reach the caller.
func (s *Scheduler) Submit(body decorator.Runnable) (*Handle, error) {
	if body == nil {
		return nil, aserrors.ErrNilTask
	}
	if s.stopped.Load() {
		return nil, s.reject(decorator.ShapeRunnable)
	}

	h := newHandle()
	task := &runTask{handle: h, body: s.decorator.WrapRunnable(body)}
	if err := s.pool.Submit(task); err != nil {
		return nil, s.submitError(decorator.ShapeRunnable, err)
	}

	s.accepted(decorator.ShapeRunnable)
	return h, nil
}

// SubmitForResult runs body as soon as a worker is free. The returned Future
// yields its value or its failure.
func SubmitForResult[T any](s *Scheduler, body decorator.Callable[T]) (*Future[T], error) {
	if body == nil {
		return nil, aserrors.ErrNilTask
	}
	if s.stopped.Load() {
		return nil, s.reject(decorator.ShapeCallable)
	}

	f := newFuture[T]()
	task := &callTask[T]{future: f, body: decorator.WrapCallable(s.decorator, body)}
	if err := s.pool.Submit(task); err != nil {
		return nil, s.submitError(decorator.ShapeCallable, err)
	}

	s.accepted(decorator.ShapeCallable)
	return f, nil
}

// ScheduleAfter runs body once, no earlier than delay from now. A negative
// delay counts as zero.
func (s *Scheduler) ScheduleAfter(body decorator.Runnable, delay time.Duration) (*ScheduledHandle, error) {
	if delay < 0 {
		delay = 0
	}
	return s.schedule(body, time.Now().Add(delay), runOnce, "delayed")
}

// ScheduleEvery runs body at a fixed rate: first after initialDelay, then at
// initialDelay + k*period. Executions never overlap; a run that falls due
// while the previous one is still executing starts as soon as it returns.
func (s *Scheduler) ScheduleEvery(body decorator.Runnable, initialDelay, period time.Duration) (*ScheduledHandle, error) {
	if err := validation.ValidatePositiveDuration("scheduler", "period", period); err != nil {
		return nil, err
	}
	if initialDelay < 0 {
		initialDelay = 0
	}
	first := time.Now().Add(initialDelay)
	return s.schedule(body, first, fixedRate(first, period), "fixed_rate")
}

func (s *Scheduler) schedule(body decorator.Runnable, first time.Time, next nextFunc, kind string) (*ScheduledHandle, error) {
	if body == nil {
		return nil, aserrors.ErrNilTask
	}
	if s.stopped.Load() {
		return nil, s.reject(decorator.ShapeRunnable)
	}

	h := newScheduledHandle(s, s.decorator.WrapRunnable(body), next)
	h.mu.Lock()
	armed := h.arm(first)
	h.mu.Unlock()
	if !armed {
		h.cancelCtx()
		return nil, s.reject(decorator.ShapeRunnable)
	}

	s.accepted(decorator.ShapeRunnable)
	s.logger.WithFields(logrus.Fields{
		"handle":    h.id,
		"task":      h.body.Describe(),
		"kind":      kind,
		"first_run": first,
	}).Debug("task scheduled")
	return h, nil
}

// SetSlowTaskThreshold sets the slow-task threshold in milliseconds. The new
// value applies to every execution that completes afterwards.
func (s *Scheduler) SetSlowTaskThreshold(ms int) {
	s.SetSlowTaskThresholdDuration(time.Duration(ms) * time.Millisecond)
}

// SetSlowTaskThresholdDuration sets the slow-task threshold.
func (s *Scheduler) SetSlowTaskThresholdDuration(threshold time.Duration) {
	s.decorator.SetSlowTaskThreshold(threshold)
}

// SlowTaskThreshold returns the current slow-task threshold.
func (s *Scheduler) SlowTaskThreshold() time.Duration {
	return s.decorator.SlowTaskThreshold()
}

// SetRunnableHotfix installs the hotfix applied to Runnables submitted from
// now on. Bodies already submitted keep the hotfix they were wrapped with.
// Nil restores the identity.
func (s *Scheduler) SetRunnableHotfix(hotfix decorator.RunnableHotfix) {
	s.decorator.SetRunnableHotfix(hotfix)
}

// SetCallableHotfix installs the hotfix applied to Callables submitted from
// now on. Nil restores the identity.
func (s *Scheduler) SetCallableHotfix(hotfix decorator.CallableHotfix) {
	s.decorator.SetCallableHotfix(hotfix)
}

// Stats returns a snapshot of the scheduler.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Name:                s.name,
		Workers:             s.pool.Size(),
		ActiveWorkers:       s.pool.ActiveWorkers(),
		QueuedTasks:         s.pool.QueueSize(),
		PendingTimers:       s.timers.len(),
		TotalSubmitted:      s.pool.TotalSubmitted(),
		TotalCompleted:      s.pool.TotalCompleted(),
		SlowTaskThresholdMS: s.SlowTaskThreshold().Milliseconds(),
		Stopped:             s.stopped.Load(),
	}
}

// Shutdown stops the scheduler immediately. Pending timers and queued tasks
// are discarded and their handles complete with errors.ErrStopped; running
// tasks see their context cancelled. Later submissions fail with
// errors.ErrStopped. Shutdown is idempotent and never panics.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.stopped.Store(true)

		// terminated closes once the pool is down, even when a step below panics.
		defer func() {
			go func() {
				<-s.pool.Done()
				close(s.terminated)
			}()
		}()
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithField("panic", r).Warn("ignored panic during shutdown")
				s.discard(s.pool.ShutdownNow())
			}
		}()

		pending := s.timers.stop()
		for _, e := range pending {
			e.handle.abort(aserrors.ErrStopped)
		}

		discarded := s.pool.ShutdownNow()
		s.discard(discarded)

		s.logger.WithFields(logrus.Fields{
			"pending_timers":  len(pending),
			"discarded_tasks": len(discarded),
		}).Info("scheduler stopped")
	})
}

// discard settles the handles of tasks that will never run.
func (s *Scheduler) discard(tasks []workerpool.Task) {
	for _, task := range tasks {
		if a, ok := workerpool.Unwrap(task).(aborter); ok {
			a.abort(aserrors.ErrStopped)
		}
	}
}

// Terminated returns a channel that closes once Shutdown has been called and
// every running task has returned.
func (s *Scheduler) Terminated() <-chan struct{} {
	return s.terminated
}

func (s *Scheduler) accepted(shape string) {
	if s.registry != nil {
		s.registry.TasksSubmitted.WithLabelValues(s.name, shape).Inc()
	}
}

func (s *Scheduler) reject(shape string) error {
	if s.registry != nil {
		s.registry.TasksRejected.WithLabelValues(s.name, shape).Inc()
	}
	return aserrors.ErrStopped
}

func (s *Scheduler) submitError(shape string, err error) error {
	if errors.Is(err, aserrors.ErrClosed) {
		return s.reject(shape)
	}
	return err
}
