package errors

import (
	"context"
	"errors"
	"fmt"
)

// Common error types used across the asyncsched library

var (
	// ErrStopped indicates that work was submitted to, or discarded by, a stopped scheduler
	ErrStopped = errors.New("scheduler is stopped")

	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrCancelled is the cooperative cancellation signal a task body returns
	// when it observes an interruption request
	ErrCancelled = errors.New("task cancelled")

	// ErrNilTask indicates that a nil task body was submitted
	ErrNilTask = errors.New("task cannot be nil")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Kind tags a task failure.
type Kind int

const (
	// KindNone means no failure.
	KindNone Kind = iota
	// KindFailure is an ordinary failure returned by task logic.
	KindFailure
	// KindPanic is a panic recovered from task logic.
	KindPanic
	// KindCancelled is the cooperative cancellation signal.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFailure:
		return "failure"
	case KindPanic:
		return "panic"
	case KindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TaskError describes a failure raised while executing a task body.
type TaskError struct {
	Kind  Kind
	Task  string
	Cause error
	Stack string
}

func (e *TaskError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("task %s: %s", e.Task, e.Kind)
	}
	return fmt.Sprintf("task %s: %s: %v", e.Task, e.Kind, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// NewPanicError converts a recovered panic value into a TaskError.
func NewPanicError(task string, recovered interface{}, stack []byte) *TaskError {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("%v", recovered)
	}
	return &TaskError{Kind: KindPanic, Task: task, Cause: cause, Stack: string(stack)}
}

// IsCancelled reports whether err carries the cooperative cancellation signal.
// A context.Canceled returned by a body that honoured its context counts as well.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	var te *TaskError
	if errors.As(err, &te) && te.Kind == KindCancelled {
		return true
	}
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// KindOf classifies err. A recovered panic stays KindPanic even when the
// panic value was a context error.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var te *TaskError
	if errors.As(err, &te) && te.Kind == KindPanic {
		return KindPanic
	}
	if IsCancelled(err) {
		return KindCancelled
	}
	if te != nil {
		return te.Kind
	}
	return KindFailure
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewValidationError creates a ValidationError.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{Module: module, Field: field, Value: value, Reason: reason}
}

// WithHint attaches a remediation hint and returns the same instance.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
