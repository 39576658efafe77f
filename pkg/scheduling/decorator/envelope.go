package decorator

import (
	"context"
	"fmt"
	"runtime/debug"

	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
)

// WrappedRunnable is the envelope around one submitted Runnable.
type WrappedRunnable struct {
	d        *Decorator
	original Runnable
	body     Runnable
	name     string
}

// WrapRunnable wraps body with the hotfix installed at the time of the call.
func (d *Decorator) WrapRunnable(body Runnable) *WrappedRunnable {
	w := &WrappedRunnable{
		d:        d,
		original: body,
		body:     body,
		name:     Describe(body),
	}
	if hotfix := d.runnableHotfix.Load(); hotfix != nil {
		w.body = (*hotfix)(body)
	}
	return w
}

// Original returns the body as submitted.
func (w *WrappedRunnable) Original() Runnable { return w.original }

// Describe returns the identification of the original body.
func (w *WrappedRunnable) Describe() string { return w.name }

// Run executes the body. Failures are logged and absorbed, except the
// cancellation signal which is logged and returned.
func (w *WrappedRunnable) Run(ctx context.Context) error {
	start := w.d.clock.Now()
	var err error
	defer func() { w.d.complete(ShapeRunnable, w.name, start, err) }()

	err = w.invoke(ctx)
	if err == nil {
		return nil
	}

	w.d.logFailure(ShapeRunnable, w.name, err)
	if isCancelled(err) {
		return err
	}
	return nil
}

func (w *WrappedRunnable) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = aserrors.NewPanicError(w.name, r, debug.Stack())
		}
	}()
	return w.body.Run(ctx)
}

// WrappedCallable is the envelope around one submitted Callable.
type WrappedCallable[T any] struct {
	d        *Decorator
	original Callable[T]
	hotfixed Callable[any]
	name     string
}

// WrapCallable wraps body with the hotfix installed at the time of the call.
func WrapCallable[T any](d *Decorator, body Callable[T]) *WrappedCallable[T] {
	w := &WrappedCallable[T]{
		d:        d,
		original: body,
		name:     Describe(body),
	}
	if hotfix := d.callableHotfix.Load(); hotfix != nil {
		w.hotfixed = (*hotfix)(erasedCallable[T]{body: body, name: w.name})
	}
	return w
}

// Original returns the body as submitted.
func (w *WrappedCallable[T]) Original() Callable[T] { return w.original }

// Describe returns the identification of the original body.
func (w *WrappedCallable[T]) Describe() string { return w.name }

// Call executes the body. Every failure is logged and returned unchanged.
func (w *WrappedCallable[T]) Call(ctx context.Context) (T, error) {
	start := w.d.clock.Now()
	var err error
	defer func() { w.d.complete(ShapeCallable, w.name, start, err) }()

	var result T
	result, err = w.invoke(ctx)
	if err != nil {
		w.d.logFailure(ShapeCallable, w.name, err)
	}
	return result, err
}

func (w *WrappedCallable[T]) invoke(ctx context.Context) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = aserrors.NewPanicError(w.name, r, debug.Stack())
		}
	}()

	if w.hotfixed == nil {
		return w.original.Call(ctx)
	}

	v, err := w.hotfixed.Call(ctx)
	if err != nil || v == nil {
		return result, err
	}
	typed, ok := v.(T)
	if !ok {
		return result, &aserrors.TaskError{
			Kind:  aserrors.KindFailure,
			Task:  w.name,
			Cause: fmt.Errorf("hotfix produced %T, want %T", v, result),
		}
	}
	return typed, nil
}

// erasedCallable presents a Callable[T] to a CallableHotfix.
type erasedCallable[T any] struct {
	body Callable[T]
	name string
}

func (e erasedCallable[T]) Call(ctx context.Context) (any, error) {
	return e.body.Call(ctx)
}

func (e erasedCallable[T]) Describe() string { return e.name }

// isCancelled excludes recovered panics, whose cause may itself be a
// context error.
func isCancelled(err error) bool {
	return aserrors.KindOf(err) == aserrors.KindCancelled
}
