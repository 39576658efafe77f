package decorator

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
	"github.com/vnykmshr/asyncsched/pkg/metrics"
)

// DefaultSlowTaskThreshold is the execution time above which a completed
// task is reported as slow.
const DefaultSlowTaskThreshold = 500 * time.Millisecond

// Shape names used in log fields and metric labels.
const (
	ShapeRunnable = "runnable"
	ShapeCallable = "callable"
)

// Clock abstracts time for testing purposes.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type realClock struct{}

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

// RunnableHotfix substitutes the body executed for a Runnable.
type RunnableHotfix func(Runnable) Runnable

// CallableHotfix substitutes the body executed for a Callable. The body is
// seen with its result erased to any; the value it produces must still be
// assignable to the submitter's result type.
type CallableHotfix func(Callable[any]) Callable[any]

// Decorator wraps task bodies in the instrumentation envelope.
//
// The slow-task threshold and the hotfixes may be changed at any time from
// any goroutine. A hotfix change is eventually visible to new wraps; bodies
// already wrapped keep the hotfix they captured. The threshold is read when
// an execution completes.
type Decorator struct {
	logger    logrus.FieldLogger
	clock     Clock
	registry  *metrics.Registry
	name      string
	threshold atomic.Int64

	runnableHotfix atomic.Pointer[RunnableHotfix]
	callableHotfix atomic.Pointer[CallableHotfix]
}

// Option configures a Decorator.
type Option func(*Decorator)

// WithLogger sets the logger failures and slow tasks are reported to.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Decorator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock sets the clock used to time executions.
func WithClock(clock Clock) Option {
	return func(d *Decorator) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithThreshold sets the initial slow-task threshold.
func WithThreshold(threshold time.Duration) Option {
	return func(d *Decorator) {
		d.threshold.Store(int64(threshold))
	}
}

// WithMetrics records execution outcomes in registry, labelled with name.
func WithMetrics(registry *metrics.Registry, name string) Option {
	return func(d *Decorator) {
		d.registry = registry
		d.name = name
	}
}

// New creates a Decorator.
func New(opts ...Option) *Decorator {
	d := &Decorator{
		logger: logrus.StandardLogger(),
		clock:  realClock{},
	}
	d.threshold.Store(int64(DefaultSlowTaskThreshold))

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetSlowTaskThreshold replaces the slow-task threshold.
func (d *Decorator) SetSlowTaskThreshold(threshold time.Duration) {
	d.threshold.Store(int64(threshold))
}

// SlowTaskThreshold returns the current slow-task threshold.
func (d *Decorator) SlowTaskThreshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// SetRunnableHotfix installs the hotfix applied to Runnables wrapped from
// now on. Nil restores the identity.
func (d *Decorator) SetRunnableHotfix(hotfix RunnableHotfix) {
	if hotfix == nil {
		d.runnableHotfix.Store(nil)
		return
	}
	d.runnableHotfix.Store(&hotfix)
}

// SetCallableHotfix installs the hotfix applied to Callables wrapped from
// now on. Nil restores the identity.
func (d *Decorator) SetCallableHotfix(hotfix CallableHotfix) {
	if hotfix == nil {
		d.callableHotfix.Store(nil)
		return
	}
	d.callableHotfix.Store(&hotfix)
}

func (d *Decorator) logFailure(shape, task string, err error) {
	fields := logrus.Fields{
		"task":  task,
		"shape": shape,
		"error": err,
	}
	var te *aserrors.TaskError
	if errors.As(err, &te) && te.Kind == aserrors.KindPanic && te.Stack != "" {
		fields["stack"] = te.Stack
	}
	d.logger.WithFields(fields).Error("task failed")
}

// complete runs after every execution regardless of its outcome.
func (d *Decorator) complete(shape, task string, start time.Time, err error) {
	elapsed := d.clock.Since(start)
	threshold := d.SlowTaskThreshold()
	slow := elapsed > threshold

	if slow {
		d.logger.WithFields(logrus.Fields{
			"task":       task,
			"shape":      shape,
			"elapsed_ms": elapsed.Milliseconds(),
		}).Warn("slow task")
	}

	if d.registry == nil {
		return
	}
	d.registry.TaskExecutionDuration.WithLabelValues(d.name, shape).Observe(elapsed.Seconds())
	if slow {
		d.registry.TasksSlow.WithLabelValues(d.name, shape).Inc()
	}
	switch {
	case err == nil:
		d.registry.TasksCompleted.WithLabelValues(d.name, shape).Inc()
	case isCancelled(err):
		d.registry.TasksCancelled.WithLabelValues(d.name, shape).Inc()
	default:
		d.registry.TasksFailed.WithLabelValues(d.name, shape).Inc()
	}
}
