package runtimebridge

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/pkg/errors"
)

// ErrClosed is returned for work handed to a bridge after Close.
var ErrClosed = errors.New("runtime bridge is closed")

// CallFunc runs on the loop goroutine and returns a result to the caller.
type CallFunc func(ctx context.Context, vm *goja.Runtime) (any, error)

// PostFunc runs on the loop goroutine; nobody waits for it.
type PostFunc func(ctx context.Context, vm *goja.Runtime)

// Bridge runs callbacks on the goroutine that owns a goja runtime, i.e. the event
// loop. Every goja.Runtime access from other goroutines must go through it.
type Bridge struct {
	loop *eventloop.EventLoop

	// closed is canceled by Close. A stopped loop silently drops queued jobs, so
	// waiters select on it.
	closed context.Context
	cancel context.CancelFunc
}

func New(loop *eventloop.EventLoop) *Bridge {
	if loop == nil {
		panic("runtimebridge: loop is nil")
	}
	closed, cancel := context.WithCancel(context.Background())
	return &Bridge{loop: loop, closed: closed, cancel: cancel}
}

// Close rejects all later work. Callers waiting in Call return ErrClosed.
func (b *Bridge) Close() {
	b.cancel()
}

// Context is canceled by Close. Work posted before that may never run if the
// loop has stopped.
func (b *Bridge) Context() context.Context {
	return b.closed
}

func (b *Bridge) check(op string, hasFn bool) error {
	if b == nil || b.loop == nil {
		return fmt.Errorf("runtimebridge %s: nil bridge", op)
	}
	if !hasFn {
		return fmt.Errorf("runtimebridge %s: nil callback", op)
	}
	if b.closed.Err() != nil {
		return errors.Wrap(ErrClosed, op)
	}
	return nil
}

// Call runs fn on the loop and waits for its result, for ctx to be done or for
// the bridge to close. A panic in fn is returned as an error.
func (b *Bridge) Call(ctx context.Context, op string, fn CallFunc) (any, error) {
	if err := b.check(op, fn != nil); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	b.loop.RunOnLoop(func(vm *goja.Runtime) {
		if err := ctx.Err(); err != nil {
			done <- result{err: err}
			return
		}
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("runtimebridge %s: panic: %v", op, r)}
			}
		}()
		v, err := fn(ctx, vm)
		done <- result{v: v, err: err}
	})

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.closed.Done():
		return nil, errors.Wrap(ErrClosed, op)
	}
}

// Post enqueues fn on the loop without waiting for it to run. Callers that
// wait for fn's effects should also watch Context.
func (b *Bridge) Post(ctx context.Context, op string, fn PostFunc) error {
	if err := b.check(op, fn != nil); err != nil {
		return err
	}
	b.loop.RunOnLoop(func(vm *goja.Runtime) {
		fn(ctx, vm)
	})
	return nil
}

// ToJSValue executes conversion on the loop goroutine.
func (b *Bridge) ToJSValue(ctx context.Context, op string, convert func(*goja.Runtime) goja.Value) (goja.Value, error) {
	if convert == nil {
		return nil, fmt.Errorf("runtimebridge %s: nil converter", op)
	}
	ret, err := b.Call(ctx, op, func(_ context.Context, vm *goja.Runtime) (any, error) {
		return convert(vm), nil
	})
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, nil
	}
	v, ok := ret.(goja.Value)
	if !ok {
		return nil, fmt.Errorf("runtimebridge %s: expected goja.Value, got %T", op, ret)
	}
	return v, nil
}
