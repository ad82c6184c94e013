// Package task provides the deferred value returned by asynchronous proxy
// invocations.
//
// A Task settles exactly once, into one of three terminal states: completed with a
// value, faulted with an error, or canceled. Cancellation is reported with
// ErrCanceled and is never folded into a fault.
package task

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusFaulted
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFaulted:
		return "faulted"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ErrCanceled is returned by Await when the task was canceled.
// errors.Is(ErrCanceled, context.Canceled) holds.
var ErrCanceled error = canceledError{}

type canceledError struct{}

func (canceledError) Error() string { return "task canceled" }

func (canceledError) Is(target error) bool { return target == context.Canceled }

type Task[T any] struct {
	done   chan struct{}
	once   sync.Once
	status Status
	result Result[T]
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// settle returns false if the task had already settled.
func (t *Task[T]) settle(status Status, r Result[T]) bool {
	settled := false
	t.once.Do(func() {
		t.status = status
		t.result = r
		settled = true
		close(t.done)
	})
	return settled
}

// Done is closed once the task has settled.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Status returns StatusRunning until the task settles.
func (t *Task[T]) Status() Status {
	select {
	case <-t.done:
		return t.status
	default:
		return StatusRunning
	}
}

func (t *Task[T]) IsFaulted() bool   { return t.Status() == StatusFaulted }
func (t *Task[T]) IsCanceled() bool  { return t.Status() == StatusCanceled }

// Await blocks until the task settles or ctx is done. A done ctx only stops the
// wait; the task itself keeps running.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result.Value()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled result. It must only be called after Done is closed.
func (t *Task[T]) Result() Result[T] {
	<-t.done
	return t.result
}

// ContinueWith runs fn on its own goroutine once t has settled.
func (t *Task[T]) ContinueWith(fn func(*Task[T])) {
	go func() {
		<-t.done
		fn(t)
	}()
}

// CompletionSource is the producer side of a Task.
type CompletionSource[T any] struct {
	task *Task[T]
}

func NewCompletionSource[T any]() *CompletionSource[T] {
	return &CompletionSource[T]{task: newTask[T]()}
}

func (c *CompletionSource[T]) Task() *Task[T] {
	return c.task
}

func (c *CompletionSource[T]) TrySetResult(v T) bool {
	return c.task.settle(StatusCompleted, valueResult(v))
}

func (c *CompletionSource[T]) TrySetError(err error) bool {
	if err == nil {
		err = errors.New("task faulted with a nil error")
	}
	return c.task.settle(StatusFaulted, errorResult[T](err))
}

func (c *CompletionSource[T]) TrySetCanceled() bool {
	return c.task.settle(StatusCanceled, errorResult[T](ErrCanceled))
}

func FromResult[T any](v T) *Task[T] {
	t := newTask[T]()
	t.settle(StatusCompleted, valueResult(v))
	return t
}

func FromError[T any](err error) *Task[T] {
	c := NewCompletionSource[T]()
	c.TrySetError(err)
	return c.task
}

func Canceled[T any]() *Task[T] {
	t := newTask[T]()
	t.settle(StatusCanceled, errorResult[T](ErrCanceled))
	return t
}

// Then maps the value of a completed task. Faults are passed on as the identical
// error value and cancellation stays cancellation. If fn returns an error the
// resulting task faults with it.
func Then[T, U any](t *Task[T], fn func(T) (U, error)) *Task[U] {
	c := NewCompletionSource[U]()
	t.ContinueWith(func(t *Task[T]) {
		switch t.status {
		case StatusCompleted:
			u, err := fn(t.result.value)
			if err != nil {
				c.TrySetError(err)
				return
			}
			c.TrySetResult(u)
		case StatusFaulted:
			c.TrySetError(t.result.err)
		case StatusCanceled:
			c.TrySetCanceled()
		}
	})
	return c.task
}
