package js

import (
	"context"
	"reflect"
	"sync"

	"github.com/dop251/goja"
	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/go-go-golems/jsproxy/pkg/js/runtimebridge"
	"github.com/go-go-golems/jsproxy/pkg/task"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// reference holds a JavaScript object until it is disposed.
type reference struct {
	vm *goja.Runtime

	mu  sync.Mutex
	obj *goja.Object
}

func (r *reference) gojaObject() (*goja.Object, *goja.Runtime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.obj == nil {
		return nil, r.vm, ErrDisposed
	}
	return r.obj, r.vm, nil
}

func (r *reference) dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.obj != nil {
		log.Debug().Msg("Disposed object reference")
	}
	r.obj = nil
}

// LoopObjectReference is an object owned by an Engine's event loop. It can only
// be invoked asynchronously.
type LoopObjectReference struct {
	reference
	bridge *runtimebridge.Bridge
}

var _ interop.ObjectReference = (*LoopObjectReference)(nil)

func newLoopObjectReference(bridge *runtimebridge.Bridge, vm *goja.Runtime, obj *goja.Object) *LoopObjectReference {
	return &LoopObjectReference{
		reference: reference{vm: vm, obj: obj},
		bridge:    bridge,
	}
}

func (r *LoopObjectReference) InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	return invokeOnLoop(ctx, r.bridge, &r.reference, identifier, returnType, args)
}

func (r *LoopObjectReference) DisposeAsync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.dispose()
	return nil
}

// VMObjectReference is an object of a goja.Runtime used directly by the calling
// goroutine. Like the runtime itself it must not be shared between goroutines.
type VMObjectReference struct {
	reference
}

var _ interop.InProcessObjectReference = (*VMObjectReference)(nil)

func newVMObjectReference(vm *goja.Runtime, obj *goja.Object) *VMObjectReference {
	return &VMObjectReference{reference: reference{vm: vm, obj: obj}}
}

func (r *VMObjectReference) Invoke(identifier string, returnType reflect.Type, args []any) (any, error) {
	obj, vm, err := r.gojaObject()
	if err != nil {
		return nil, err
	}
	return invokeInProcess(vm, obj, identifier, returnType, args)
}

func (r *VMObjectReference) InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	obj, vm, err := r.gojaObject()
	if err != nil {
		return task.FromError[any](err)
	}
	return invokeInProcessAsync(ctx, vm, obj, identifier, returnType, args)
}

func (r *VMObjectReference) Dispose() error {
	r.dispose()
	return nil
}

func (r *VMObjectReference) DisposeAsync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Dispose()
}

// LoopRuntime invokes global functions on an Engine's event loop. It is not an
// in-process runtime: every call is posted to the loop goroutine.
type LoopRuntime struct {
	bridge *runtimebridge.Bridge
}

var _ interop.Runtime = (*LoopRuntime)(nil)

func (r *LoopRuntime) InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	return invokeOnLoop(ctx, r.bridge, nil, identifier, returnType, args)
}

// VMRuntime invokes global functions directly on a goja.Runtime. It must only be
// used from the goroutine that owns vm, e.g. inside an event loop callback.
type VMRuntime struct {
	vm *goja.Runtime
}

var _ interop.InProcessRuntime = (*VMRuntime)(nil)

func NewVMRuntime(vm *goja.Runtime) *VMRuntime {
	if vm == nil {
		return nil
	}
	return &VMRuntime{vm: vm}
}

// VM returns the underlying goja runtime.
func (r *VMRuntime) VM() *goja.Runtime {
	return r.vm
}

// Invoke calls identifier and converts its result without awaiting promises. A
// promise result can be requested as an object reference or as goja.Value.
func (r *VMRuntime) Invoke(identifier string, returnType reflect.Type, args []any) (any, error) {
	return invokeInProcess(r.vm, nil, identifier, returnType, args)
}

// InvokeAsync calls identifier on the caller's goroutine. A returned promise
// settles the task once the runtime has run its jobs.
func (r *VMRuntime) InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	return invokeInProcessAsync(ctx, r.vm, nil, identifier, returnType, args)
}

func invokeInProcess(vm *goja.Runtime, target *goja.Object, identifier string, returnType reflect.Type, args []any) (any, error) {
	v, err := invokeOn(vm, target, identifier, args)
	if err != nil {
		return nil, err
	}
	return fromJSValue(vm, v, returnType, func(obj *goja.Object) any {
		return newVMObjectReference(vm, obj)
	})
}

func invokeInProcessAsync(ctx context.Context, vm *goja.Runtime, target *goja.Object, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	if ctx.Err() != nil {
		return task.Canceled[any]()
	}
	v, err := invokeOn(vm, target, identifier, args)
	if err != nil {
		return task.FromError[any](err)
	}

	cs := newCancelableSource(ctx)
	settleFrom(cs, vm, v, identifier, returnType, func(obj *goja.Object) any {
		return newVMObjectReference(vm, obj)
	})
	return cs.Task()
}

// invokeOnLoop posts the invocation to the loop goroutine. Canceling ctx cancels
// the returned task even if the loop has not run the call yet, and closing the
// bridge faults it with ErrEngineStopped.
func invokeOnLoop(ctx context.Context, bridge *runtimebridge.Bridge, target *reference, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	if ctx.Err() != nil {
		return task.Canceled[any]()
	}

	cs := newCancelableSource(ctx)
	stop := context.AfterFunc(bridge.Context(), func() {
		cs.TrySetError(errors.Wrap(ErrEngineStopped, identifier))
	})
	cs.Task().ContinueWith(func(*task.Task[any]) {
		stop()
	})

	err := bridge.Post(ctx, identifier, func(ctx context.Context, vm *goja.Runtime) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("identifier", identifier).Interface("panic", r).Msg("invocation panicked")
				cs.TrySetError(errorFromPanic(identifier, r))
			}
		}()
		if ctx.Err() != nil {
			cs.TrySetCanceled()
			return
		}

		var this *goja.Object
		if target != nil {
			obj, _, err := target.gojaObject()
			if err != nil {
				cs.TrySetError(err)
				return
			}
			this = obj
		}

		v, err := invokeOn(vm, this, identifier, args)
		if err != nil {
			cs.TrySetError(err)
			return
		}
		settleFrom(cs, vm, v, identifier, returnType, func(obj *goja.Object) any {
			return newLoopObjectReference(bridge, vm, obj)
		})
	})
	if err != nil {
		cs.TrySetError(err)
	}
	return cs.Task()
}

// newCancelableSource returns a source whose task is canceled when ctx is done.
func newCancelableSource(ctx context.Context) *task.CompletionSource[any] {
	cs := task.NewCompletionSource[any]()
	stop := context.AfterFunc(ctx, func() {
		cs.TrySetCanceled()
	})
	cs.Task().ContinueWith(func(*task.Task[any]) {
		stop()
	})
	return cs
}

// settleFrom completes cs with v, awaiting it first if it is a promise.
func settleFrom(cs *task.CompletionSource[any], vm *goja.Runtime, v goja.Value, identifier string, returnType reflect.Type, newRef func(*goja.Object) any) {
	awaitValue(vm, v,
		func(res goja.Value) {
			ret, err := fromJSValue(vm, res, returnType, newRef)
			if err != nil {
				cs.TrySetError(err)
				return
			}
			cs.TrySetResult(ret)
		},
		func(reason goja.Value) {
			cs.TrySetError(newRejectionError(identifier, reason))
		},
	)
}
