/*
Package scheduling groups the task execution primitives of asyncsched.

  - workerpool: fixed worker pool over an unbounded FIFO queue
  - decorator: the envelope that times, isolates and optionally rewrites bodies
  - scheduler: immediate, delayed, fixed-rate and cron submission on top of both

Worker Pool:

	pool := workerpool.New(4)
	defer func() { <-pool.Shutdown() }()

	pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		return nil
	}))

Scheduler:

	s, _ := scheduler.New(scheduler.Config{WorkerCount: 4})
	defer s.Shutdown()

	s.ScheduleAfter(task, time.Minute)
	s.ScheduleEvery(task, 0, time.Hour)
	s.ScheduleCron(task, "0 9 * * MON-FRI")

All components are safe for concurrent use and pass a context.Context to
every body for cooperative cancellation.
*/
package scheduling
