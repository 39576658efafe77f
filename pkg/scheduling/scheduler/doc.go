/*
Package scheduler runs task bodies on a bounded worker pool, immediately,
after a delay, at a fixed rate or on a cron schedule.

A Scheduler owns one worker pool, one timer goroutine and one
decorator.Decorator. Every body is wrapped by the decorator before it
reaches the pool, so slow executions are reported, failures are logged and a
misbehaving body never takes a worker down.

Basic Usage:

	s, err := scheduler.New(scheduler.Config{Logger: logger})
	if err != nil {
		return err
	}
	defer s.Shutdown()

	// Fire and forget: failures are only visible in the logs.
	s.Submit(decorator.RunnableFunc(func(ctx context.Context) error {
		return warmCache(ctx)
	}))

	// Value producing: failures come back through the Future.
	f, _ := scheduler.SubmitForResult[int](s, decorator.CallableFunc[int](countUsers))
	n, err := f.Get(ctx)

Delayed and Periodic Tasks:

	h, _ := s.ScheduleAfter(reminder, 5*time.Minute)
	p, _ := s.ScheduleEvery(healthCheck, 0, 30*time.Second)
	c, _ := s.ScheduleCron(report, "0 9 * * 1-5")

	scheduler.Cancel(h)

ScheduleEvery has fixed-rate semantics. Run k is due at initialDelay +
k*period regardless of how long earlier runs took. Runs of one handle never
overlap: a run that falls due while the previous one is still executing
starts as soon as it returns, and no run is skipped. Cron handles compute
their next activation when the previous run completes.

Cancellation:

Cancel prevents every execution that has not started and cancels the context
of a running one. Bodies that ignore their context run to completion. A
no-result body that returns errors.ErrCancelled or context.Canceled ends its
periodic handle.

Queueing:

Submission never blocks. Work beyond the worker count waits in an unbounded
FIFO queue; callers that can outpace the pool must throttle themselves.

Shutdown:

Shutdown stops the timer, discards queued work and cancels the contexts of
running tasks. Handles of discarded work complete with errors.ErrStopped, and
every later submission returns errors.ErrStopped. Terminated closes once the
running tasks have returned.

Runtime Tuning:

	s.SetSlowTaskThreshold(250) // milliseconds, read when each run completes
	s.SetRunnableHotfix(func(body decorator.Runnable) decorator.Runnable {
		return body
	})

A hotfix applies to bodies submitted after it is installed; work already
submitted keeps the hotfix it was wrapped with.
*/
package scheduler
