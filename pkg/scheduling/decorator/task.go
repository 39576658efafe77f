package decorator

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Runnable is a task body that produces no result.
//
// Returning an error marks the execution as failed. Returning
// errors.ErrCancelled or the context's error signals that the body observed
// an interruption request.
type Runnable interface {
	Run(ctx context.Context) error
}

// RunnableFunc adapts a function to the Runnable interface.
type RunnableFunc func(ctx context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Callable is a task body that produces a value of type T or fails.
type Callable[T any] interface {
	Call(ctx context.Context) (T, error)
}

// CallableFunc adapts a function to the Callable interface.
type CallableFunc[T any] func(ctx context.Context) (T, error)

// Call implements Callable.
func (f CallableFunc[T]) Call(ctx context.Context) (T, error) {
	return f(ctx)
}

// Describer is implemented by bodies that render their own identification
// in log entries.
type Describer interface {
	Describe() string
}

type namedRunnable struct {
	Runnable
	name string
}

func (n namedRunnable) Describe() string { return n.name }

// Named attaches a fixed description to body.
func Named(name string, body Runnable) Runnable {
	return namedRunnable{Runnable: body, name: name}
}

type namedCallable[T any] struct {
	Callable[T]
	name string
}

func (n namedCallable[T]) Describe() string { return n.name }

// NamedCallable attaches a fixed description to body.
func NamedCallable[T any](name string, body Callable[T]) Callable[T] {
	return namedCallable[T]{Callable: body, name: name}
}

// Describe renders a human-readable identification of body.
//
// Bodies implementing Describer describe themselves. Function bodies render
// as their symbol name, so closures keep a stable name such as
// "main.run.func1". Struct bodies render their type and field values.
func Describe(body any) string {
	if body == nil {
		return "<nil>"
	}
	if d, ok := body.(Describer); ok {
		return d.Describe()
	}

	v := reflect.ValueOf(body)
	switch v.Kind() {
	case reflect.Func:
		if v.IsNil() {
			return "<nil>"
		}
		if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
			return strings.TrimSuffix(fn.Name(), "-fm")
		}
		return fmt.Sprintf("%T", body)
	case reflect.Pointer:
		if v.IsNil() {
			return fmt.Sprintf("%T(nil)", body)
		}
		if v.Elem().Kind() == reflect.Struct && v.Elem().CanInterface() {
			return fmt.Sprintf("%T%+v", body, v.Elem().Interface())
		}
	}
	return fmt.Sprintf("%T%+v", body, body)
}
