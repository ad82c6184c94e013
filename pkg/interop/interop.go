// Package interop declares the host capability the proxies consume: something that
// can invoke a named JavaScript operation with positional arguments.
//
// Every handle can invoke asynchronously. Handles that can also complete an
// invocation on the caller's goroutine additionally implement the InProcess
// variants. The return type requested by the caller is passed as a reflect.Type;
// deserializing into that type is entirely the host's business.
package interop

import (
	"context"
	"reflect"

	"github.com/go-go-golems/jsproxy/pkg/task"
	"github.com/pkg/errors"
)

// Runtime invokes functions relative to the JavaScript global object.
type Runtime interface {
	InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any]
}

// InProcessRuntime is a Runtime that can also invoke synchronously.
type InProcessRuntime interface {
	Runtime
	Invoke(identifier string, returnType reflect.Type, args []any) (any, error)
}

// ObjectReference is a handle to a single JavaScript object.
type ObjectReference interface {
	InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any]
	DisposeAsync(ctx context.Context) error
}

// InProcessObjectReference is an ObjectReference that can also invoke synchronously.
type InProcessObjectReference interface {
	ObjectReference
	Invoke(identifier string, returnType reflect.Type, args []any) (any, error)
	Dispose() error
}

// Type descriptors requested when a result should come back as a handle.
var (
	ObjectReferenceType          = reflect.TypeOf((*ObjectReference)(nil)).Elem()
	InProcessObjectReferenceType = reflect.TypeOf((*InProcessObjectReference)(nil)).Elem()
	AnyType                      = reflect.TypeOf((*any)(nil)).Elem()
)

var ErrUnexpectedResult = errors.New("unexpected result type")

// TypeOf returns the descriptor for T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Cast converts a host result to T. A nil result yields the zero value of T.
func Cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Wrapf(ErrUnexpectedResult, "expected %s, got %T", TypeOf[T](), v)
	}
	return t, nil
}

type asyncInvoker interface {
	InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any]
}

type syncInvoker interface {
	Invoke(identifier string, returnType reflect.Type, args []any) (any, error)
}

// InvokeAsync invokes identifier on a Runtime or ObjectReference and casts the
// result to T.
func InvokeAsync[T any](ctx context.Context, target asyncInvoker, identifier string, args ...any) *task.Task[T] {
	return task.Then(target.InvokeAsync(ctx, identifier, TypeOf[T](), args), Cast[T])
}

// Invoke invokes identifier synchronously on an in-process handle and casts the
// result to T.
func Invoke[T any](target syncInvoker, identifier string, args ...any) (T, error) {
	v, err := target.Invoke(identifier, TypeOf[T](), args)
	if err != nil {
		var zero T
		return zero, err
	}
	return Cast[T](v)
}

// Wrapper is implemented by handles that decorate another object reference.
type Wrapper interface {
	UnwrapReference() ObjectReference
}

// UnwrapReference peels decorators off ref until it reaches the handle that was
// produced by the host.
func UnwrapReference(ref ObjectReference) ObjectReference {
	for {
		w, ok := ref.(Wrapper)
		if !ok {
			return ref
		}
		inner := w.UnwrapReference()
		if inner == nil {
			return ref
		}
		ref = inner
	}
}
