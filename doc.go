/*
Package asyncsched runs task bodies on a bounded worker pool with delayed,
fixed-rate and cron scheduling, slow-task reporting and failure isolation.

Packages:

  - pkg/scheduling/scheduler: the Scheduler, its handles and futures
  - pkg/scheduling/decorator: the envelope every body runs in (failure
    isolation, slow-task warnings, hotfix wrappers, task naming)
  - pkg/scheduling/workerpool: the fixed-size pool with an unbounded FIFO queue
  - pkg/metrics: Prometheus instrumentation
  - pkg/logging: logrus logger construction with file rotation
  - pkg/common/errors, pkg/common/validation: shared error types

The asyncsched command (cmd/asyncsched) wraps a Scheduler in a daemon with a
heartbeat task, /healthz and /metrics endpoints and config hot reload.

Example usage:

	import (
		"github.com/vnykmshr/asyncsched/pkg/scheduling/decorator"
		"github.com/vnykmshr/asyncsched/pkg/scheduling/scheduler"
	)

	s, err := scheduler.New(scheduler.Config{WorkerCount: 8})
	if err != nil {
		return err
	}
	defer s.Shutdown()

	s.Submit(decorator.Named("warm-cache", decorator.RunnableFunc(warmCache)))

	f, _ := scheduler.SubmitForResult[int](s, decorator.CallableFunc[int](countUsers))
	n, err := f.Get(ctx)

	h, _ := s.ScheduleEvery(healthCheck, 0, 30*time.Second)
	defer h.Cancel()

See the package documentation of each module for details.
*/
package asyncsched
