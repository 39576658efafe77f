/*
Package decorator wraps task bodies in an instrumentation envelope.

Every body handed to the scheduler's worker pool passes through a Decorator
first. The envelope times the execution, reports a single warning when it
exceeds the slow-task threshold, logs failures and keeps them away from the
worker that ran them.

Two body shapes exist. A Runnable produces nothing: its failures are logged
and absorbed, except the cancellation signal (errors.ErrCancelled or
context.Canceled), which is logged and returned so the caller's bookkeeping
sees the interruption. A Callable produces a value: every failure is logged
and returned unchanged.

Basic usage:

	d := decorator.New(decorator.WithLogger(logger))
	wrapped := d.WrapRunnable(decorator.RunnableFunc(func(ctx context.Context) error {
		return refreshCache(ctx)
	}))
	_ = wrapped.Run(ctx)

Hotfixes substitute the executed body without touching call sites. The
hotfix is captured when a body is wrapped:

	d.SetRunnableHotfix(func(body decorator.Runnable) decorator.Runnable {
		if decorator.Describe(body) == "jobs.rebuildIndex" {
			return decorator.RunnableFunc(func(context.Context) error { return nil })
		}
		return body
	})

Bodies are identified in logs by Describe: Describer implementations name
themselves, functions render as their symbol name and structs as their type
and field values.
*/
package decorator
