package decorator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/asyncsched/internal/testutil"
	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
	"github.com/vnykmshr/asyncsched/pkg/metrics"
)

func newTestDecorator(opts ...Option) (*Decorator, *testutil.MockClock, *test.Hook) {
	logger, hook := testutil.NewLogger()
	clock := testutil.NewMockClock(time.Time{})
	opts = append([]Option{WithLogger(logger), WithClock(clock)}, opts...)
	return New(opts...), clock, hook
}

// sleepFor simulates a body that runs for d on the mock clock.
func sleepFor(clock *testutil.MockClock, d time.Duration) RunnableFunc {
	return func(ctx context.Context) error {
		clock.Advance(d)
		return nil
	}
}

func TestNewDefaults(t *testing.T) {
	d := New()
	assert.Equal(t, DefaultSlowTaskThreshold, d.SlowTaskThreshold())

	d = New(WithThreshold(time.Second), WithLogger(nil), WithClock(nil))
	assert.Equal(t, time.Second, d.SlowTaskThreshold())
	assert.NotNil(t, d.logger)
	assert.NotNil(t, d.clock)
}

func TestRunnableFailureIsAbsorbed(t *testing.T) {
	d, _, hook := newTestDecorator()
	boom := errors.New("boom")

	wrapped := d.WrapRunnable(Named("flaky", RunnableFunc(func(ctx context.Context) error {
		return boom
	})))
	require.NoError(t, wrapped.Run(context.Background()))

	entries := testutil.FindEntries(hook, logrus.ErrorLevel, "task failed")
	require.Len(t, entries, 1)
	assert.Equal(t, "flaky", entries[0].Data["task"])
	assert.Equal(t, ShapeRunnable, entries[0].Data["shape"])
	assert.Equal(t, boom, entries[0].Data["error"])
	assert.NotContains(t, entries[0].Data, "stack")
}

func TestRunnablePanicIsAbsorbed(t *testing.T) {
	d, _, hook := newTestDecorator()

	wrapped := d.WrapRunnable(RunnableFunc(func(ctx context.Context) error {
		panic("kaboom")
	}))
	require.NoError(t, wrapped.Run(context.Background()))

	entries := testutil.FindEntries(hook, logrus.ErrorLevel, "task failed")
	require.Len(t, entries, 1)
	err, ok := entries[0].Data["error"].(error)
	require.True(t, ok)
	assert.Equal(t, aserrors.KindPanic, aserrors.KindOf(err))

	stack, ok := entries[0].Data["stack"].(string)
	require.True(t, ok, "panic entry carries the stack trace")
	assert.Contains(t, stack, "goroutine")
}

func TestRunnableCancellationIsReturned(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sentinel", aserrors.ErrCancelled},
		{"wrapped sentinel", errors.Join(errors.New("stopping"), aserrors.ErrCancelled)},
		{"context canceled", context.Canceled},
		{"tagged", &aserrors.TaskError{Kind: aserrors.KindCancelled, Task: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, hook := newTestDecorator()
			wrapped := d.WrapRunnable(RunnableFunc(func(ctx context.Context) error {
				return tt.err
			}))

			err := wrapped.Run(context.Background())
			assert.Equal(t, tt.err, err)
			assert.Equal(t, 1, testutil.CountEntries(hook, logrus.ErrorLevel, "task failed"))
		})
	}
}

func TestPanicWithContextErrorIsNotCancellation(t *testing.T) {
	d, _, _ := newTestDecorator()
	wrapped := d.WrapRunnable(RunnableFunc(func(ctx context.Context) error {
		panic(context.Canceled)
	}))
	assert.NoError(t, wrapped.Run(context.Background()))
}

func TestCallableFailureIsReturnedUnchanged(t *testing.T) {
	d, _, hook := newTestDecorator()
	boom := errors.New("lookup failed")

	wrapped := WrapCallable[int](d, CallableFunc[int](func(ctx context.Context) (int, error) {
		return 0, boom
	}))
	v, err := wrapped.Call(context.Background())

	assert.Zero(t, v)
	assert.Same(t, boom, err)
	entries := testutil.FindEntries(hook, logrus.ErrorLevel, "task failed")
	require.Len(t, entries, 1)
	assert.Equal(t, ShapeCallable, entries[0].Data["shape"])
}

func TestCallablePanicBecomesTaskError(t *testing.T) {
	d, _, hook := newTestDecorator()

	wrapped := WrapCallable[string](d, NamedCallable[string]("resolver", CallableFunc[string](func(ctx context.Context) (string, error) {
		panic(errors.New("nil map"))
	})))
	_, err := wrapped.Call(context.Background())

	var te *aserrors.TaskError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, aserrors.KindPanic, te.Kind)
	assert.Equal(t, "resolver", te.Task)
	assert.EqualError(t, te.Cause, "nil map")

	entries := testutil.FindEntries(hook, logrus.ErrorLevel, "task failed")
	require.Len(t, entries, 1)
	assert.Equal(t, te.Stack, entries[0].Data["stack"])
}

func TestCallableSuccess(t *testing.T) {
	d, _, hook := newTestDecorator()

	wrapped := WrapCallable[int](d, CallableFunc[int](func(ctx context.Context) (int, error) {
		return 42, nil
	}))
	v, err := wrapped.Call(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Empty(t, hook.AllEntries())
}

func TestSlowTaskWarning(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		warnings int
	}{
		{"under threshold", 100 * time.Millisecond, 0},
		{"at threshold", 500 * time.Millisecond, 0},
		{"over threshold", 600 * time.Millisecond, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, clock, hook := newTestDecorator()
			wrapped := d.WrapRunnable(Named("report", sleepFor(clock, tt.elapsed)))

			require.NoError(t, wrapped.Run(context.Background()))

			entries := testutil.FindEntries(hook, logrus.WarnLevel, "slow task")
			require.Len(t, entries, tt.warnings)
			if tt.warnings > 0 {
				assert.Equal(t, "report", entries[0].Data["task"])
				assert.Equal(t, tt.elapsed.Milliseconds(), entries[0].Data["elapsed_ms"])
			}
		})
	}
}

func TestSlowTaskWarningOnFailurePaths(t *testing.T) {
	d, clock, hook := newTestDecorator()

	failing := d.WrapRunnable(RunnableFunc(func(ctx context.Context) error {
		clock.Advance(time.Second)
		return errors.New("late failure")
	}))
	panicking := WrapCallable[int](d, CallableFunc[int](func(ctx context.Context) (int, error) {
		clock.Advance(time.Second)
		panic("late panic")
	}))
	cancelled := d.WrapRunnable(RunnableFunc(func(ctx context.Context) error {
		clock.Advance(time.Second)
		return aserrors.ErrCancelled
	}))

	assert.NoError(t, failing.Run(context.Background()))
	_, err := panicking.Call(context.Background())
	assert.Error(t, err)
	assert.ErrorIs(t, cancelled.Run(context.Background()), aserrors.ErrCancelled)

	assert.Equal(t, 3, testutil.CountEntries(hook, logrus.WarnLevel, "slow task"))
	assert.Equal(t, 3, testutil.CountEntries(hook, logrus.ErrorLevel, "task failed"))
}

func TestThresholdIsReadAtCompletion(t *testing.T) {
	t.Run("raised after wrap", func(t *testing.T) {
		d, clock, hook := newTestDecorator()
		wrapped := d.WrapRunnable(sleepFor(clock, 600*time.Millisecond))

		d.SetSlowTaskThreshold(time.Second)
		require.NoError(t, wrapped.Run(context.Background()))

		assert.Zero(t, testutil.CountEntries(hook, logrus.WarnLevel, "slow task"))
	})

	t.Run("lowered while running", func(t *testing.T) {
		d, clock, hook := newTestDecorator()
		wrapped := d.WrapRunnable(RunnableFunc(func(ctx context.Context) error {
			d.SetSlowTaskThreshold(100 * time.Millisecond)
			clock.Advance(200 * time.Millisecond)
			return nil
		}))

		require.NoError(t, wrapped.Run(context.Background()))

		assert.Equal(t, 1, testutil.CountEntries(hook, logrus.WarnLevel, "slow task"))
	})
}

func TestRunnableHotfixIsCapturedAtWrapTime(t *testing.T) {
	d, _, _ := newTestDecorator()

	var originals, substitutes int32
	body := RunnableFunc(func(ctx context.Context) error {
		atomic.AddInt32(&originals, 1)
		return nil
	})

	var before []*WrappedRunnable
	for i := 0; i < 5; i++ {
		before = append(before, d.WrapRunnable(body))
	}

	d.SetRunnableHotfix(func(Runnable) Runnable {
		return RunnableFunc(func(ctx context.Context) error {
			atomic.AddInt32(&substitutes, 1)
			return nil
		})
	})
	after := d.WrapRunnable(body)

	for _, w := range before {
		require.NoError(t, w.Run(context.Background()))
	}
	require.NoError(t, after.Run(context.Background()))

	assert.Equal(t, int32(5), atomic.LoadInt32(&originals))
	assert.Equal(t, int32(1), atomic.LoadInt32(&substitutes))

	// Clearing the hotfix restores the identity for later wraps only.
	d.SetRunnableHotfix(nil)
	require.NoError(t, d.WrapRunnable(body).Run(context.Background()))
	require.NoError(t, after.Run(context.Background()))
	assert.Equal(t, int32(6), atomic.LoadInt32(&originals))
	assert.Equal(t, int32(2), atomic.LoadInt32(&substitutes))
}

func TestHotfixKeepsOriginalIdentification(t *testing.T) {
	d, _, hook := newTestDecorator()
	d.SetRunnableHotfix(func(Runnable) Runnable {
		return RunnableFunc(func(ctx context.Context) error { return errors.New("patched") })
	})

	wrapped := d.WrapRunnable(Named("nightly-export", RunnableFunc(func(ctx context.Context) error { return nil })))
	require.NoError(t, wrapped.Run(context.Background()))

	assert.Equal(t, "nightly-export", wrapped.Describe())
	assert.Equal(t, "nightly-export", Describe(wrapped.Original()))
	entries := testutil.FindEntries(hook, logrus.ErrorLevel, "task failed")
	require.Len(t, entries, 1)
	assert.Equal(t, "nightly-export", entries[0].Data["task"])
}

func TestCallableHotfix(t *testing.T) {
	d, _, _ := newTestDecorator()
	body := NamedCallable[int]("answer", CallableFunc[int](func(ctx context.Context) (int, error) {
		return 41, nil
	}))

	d.SetCallableHotfix(func(next Callable[any]) Callable[any] {
		return CallableFunc[any](func(ctx context.Context) (any, error) {
			v, err := next.Call(ctx)
			if err != nil {
				return nil, err
			}
			return v.(int) + 1, nil
		})
	})

	v, err := WrapCallable[int](d, body).Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCallableHotfixWrongType(t *testing.T) {
	d, _, hook := newTestDecorator()
	d.SetCallableHotfix(func(Callable[any]) Callable[any] {
		return CallableFunc[any](func(ctx context.Context) (any, error) {
			return "not a number", nil
		})
	})

	_, err := WrapCallable[int](d, CallableFunc[int](func(ctx context.Context) (int, error) {
		return 1, nil
	})).Call(context.Background())

	var te *aserrors.TaskError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, aserrors.KindFailure, te.Kind)
	assert.Contains(t, te.Error(), "hotfix produced string, want int")
	assert.Equal(t, 1, testutil.CountEntries(hook, logrus.ErrorLevel, "task failed"))
}

func TestCallableHotfixNilResult(t *testing.T) {
	d, _, _ := newTestDecorator()
	d.SetCallableHotfix(func(Callable[any]) Callable[any] {
		return CallableFunc[any](func(ctx context.Context) (any, error) { return nil, nil })
	})

	v, err := WrapCallable[*int](d, CallableFunc[*int](func(ctx context.Context) (*int, error) {
		n := 1
		return &n, nil
	})).Call(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)

	d.SetCallableHotfix(nil)
	v, err = WrapCallable[*int](d, CallableFunc[*int](func(ctx context.Context) (*int, error) {
		n := 1
		return &n, nil
	})).Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *v)
}

func TestMetricsRecorded(t *testing.T) {
	registry := metrics.NewRegistry(prometheus.NewRegistry())
	d, clock, _ := newTestDecorator(WithMetrics(registry, "test"))

	require.NoError(t, d.WrapRunnable(sleepFor(clock, time.Second)).Run(context.Background()))
	require.NoError(t, d.WrapRunnable(RunnableFunc(func(ctx context.Context) error {
		return errors.New("x")
	})).Run(context.Background()))
	_ = d.WrapRunnable(RunnableFunc(func(ctx context.Context) error {
		return aserrors.ErrCancelled
	})).Run(context.Background())
	_, _ = WrapCallable[int](d, CallableFunc[int](func(ctx context.Context) (int, error) {
		return 1, nil
	})).Call(context.Background())

	assert.Equal(t, 1.0, promtest.ToFloat64(registry.TasksCompleted.WithLabelValues("test", ShapeRunnable)))
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.TasksFailed.WithLabelValues("test", ShapeRunnable)))
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.TasksCancelled.WithLabelValues("test", ShapeRunnable)))
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.TasksSlow.WithLabelValues("test", ShapeRunnable)))
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.TasksCompleted.WithLabelValues("test", ShapeCallable)))
	assert.Equal(t, 2, promtest.CollectAndCount(registry.TaskExecutionDuration))
}
