package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/decorator"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/scheduler"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Example demonstrates fire-and-forget and value-producing submissions.
func Example() {
	s, err := scheduler.New(scheduler.Config{WorkerCount: 4, Logger: quietLogger()})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer func() {
		s.Shutdown()
		<-s.Terminated()
	}()

	h, _ := s.Submit(decorator.RunnableFunc(func(ctx context.Context) error {
		fmt.Println("Task executed")
		return nil
	}))
	_ = h.Wait(context.Background())

	f, _ := scheduler.SubmitForResult[int](s, decorator.CallableFunc[int](func(ctx context.Context) (int, error) {
		return 6 * 7, nil
	}))
	v, err := f.Get(context.Background())
	fmt.Println(v, err)

	// Output:
	// Task executed
	// 42 <nil>
}

// Example_scheduleEvery demonstrates a fixed-rate task cancelled after three runs.
func Example_scheduleEvery() {
	s, _ := scheduler.New(scheduler.Config{Logger: quietLogger()})
	defer func() {
		s.Shutdown()
		<-s.Terminated()
	}()

	var runs int32
	var h *scheduler.ScheduledHandle
	ready := make(chan struct{})
	h, _ = s.ScheduleEvery(decorator.RunnableFunc(func(ctx context.Context) error {
		<-ready
		if atomic.AddInt32(&runs, 1) == 3 {
			scheduler.Cancel(h)
		}
		return nil
	}), 0, 20*time.Millisecond)
	close(ready)

	<-h.Done()
	fmt.Printf("runs: %d, cancelled: %v\n", atomic.LoadInt32(&runs), errors.Is(h.Err(), aserrors.ErrCancelled))

	// Output: runs: 3, cancelled: true
}

// Example_hotfix demonstrates replacing a task body without touching its call site.
func Example_hotfix() {
	s, _ := scheduler.New(scheduler.Config{WorkerCount: 1, Logger: quietLogger()})
	defer func() {
		s.Shutdown()
		<-s.Terminated()
	}()

	legacy := decorator.Named("legacy-sync", decorator.RunnableFunc(func(ctx context.Context) error {
		fmt.Println("legacy sync")
		return nil
	}))

	s.SetRunnableHotfix(func(body decorator.Runnable) decorator.Runnable {
		if decorator.Describe(body) != "legacy-sync" {
			return body
		}
		return decorator.RunnableFunc(func(ctx context.Context) error {
			fmt.Println("patched sync")
			return nil
		})
	})

	h, _ := s.Submit(legacy)
	_ = h.Wait(context.Background())

	// Output: patched sync
}

// Example_shutdown demonstrates that work submitted after Shutdown fails fast.
func Example_shutdown() {
	s, _ := scheduler.New(scheduler.Config{Logger: quietLogger()})

	pending, _ := s.ScheduleAfter(decorator.RunnableFunc(func(ctx context.Context) error {
		return nil
	}), time.Hour)

	s.Shutdown()
	<-s.Terminated()

	_, err := s.Submit(decorator.RunnableFunc(func(ctx context.Context) error { return nil }))
	fmt.Println(err)
	fmt.Println(pending.Err())

	// Output:
	// scheduler is stopped
	// scheduler is stopped
}
