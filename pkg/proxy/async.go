package proxy

import (
	"context"
	"reflect"

	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/go-go-golems/jsproxy/pkg/task"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AsyncProxy is the explicit member-access surface of the asynchronous proxies.
//
// Get and Call wrap a returned object reference in a new AsyncObjectReference.
// InvokeMember is the generic entry point: with exactly one type argument on the
// binder it returns a *task.Task[any] holding the raw value; with none it behaves
// like Call and returns a *task.Task[*AsyncObjectReference]. Use InvokeAsync for a
// typed call.
type AsyncProxy interface {
	Get(ctx context.Context, name string) *task.Task[*AsyncObjectReference]
	Call(ctx context.Context, name string, args ...any) *task.Task[*AsyncObjectReference]
	InvokeMember(ctx context.Context, binder Binder, args ...any) (any, error)
}

type asyncInvokeFunc func(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any]

// asyncDispatcher implements AsyncProxy on top of a single invocation hook
// supplied by the concrete proxy.
type asyncDispatcher struct {
	invokeAsync asyncInvokeFunc
}

func (d asyncDispatcher) Get(ctx context.Context, name string) *task.Task[*AsyncObjectReference] {
	log.Trace().Str("member", name).Str("mode", "async").Msg("get member")
	return wrapAsync(name, d.invokeAsync(ctx, name, interop.ObjectReferenceType, nil))
}

func (d asyncDispatcher) Call(ctx context.Context, name string, args ...any) *task.Task[*AsyncObjectReference] {
	log.Trace().Str("member", name).Str("mode", "async").Int("args", len(args)).Msg("call member")
	return wrapAsync(name, d.invokeAsync(ctx, name, interop.ObjectReferenceType, args))
}

func (d asyncDispatcher) InvokeMember(ctx context.Context, binder Binder, args ...any) (any, error) {
	if binder == nil {
		return nil, errors.Wrap(ErrNilReference, "binder")
	}
	inv := describe(binder, args)
	switch len(inv.TypeArguments) {
	case 0:
		return d.Call(ctx, inv.Name, inv.Args...), nil
	case 1:
		log.Trace().
			Str("member", inv.Name).
			Str("mode", "async").
			Stringer("returnType", inv.TypeArguments[0]).
			Int("args", len(inv.Args)).
			Msg("call generic member")
		return d.invokeAsync(ctx, inv.Name, inv.TypeArguments[0], inv.Args), nil
	default:
		return nil, errors.Wrapf(ErrTypeArgumentArity, "%s: got %d", inv.Name, len(inv.TypeArguments))
	}
}

func wrapAsync(identifier string, t *task.Task[any]) *task.Task[*AsyncObjectReference] {
	return task.Then(t, func(v any) (*AsyncObjectReference, error) {
		if isNil(v) {
			return nil, errors.Wrap(ErrNullResult, identifier)
		}
		jsObject, ok := v.(interop.ObjectReference)
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedResult, "%s returned %T", identifier, v)
		}
		return newAsyncObjectReference(jsObject), nil
	})
}

// InvokeAsync calls name on p with a single explicit type argument T and returns
// the result without wrapping it in a proxy.
func InvokeAsync[T any](ctx context.Context, p AsyncProxy, name string, args ...any) *task.Task[T] {
	ret, err := p.InvokeMember(ctx, GenericMember(name, interop.TypeOf[T]()), args...)
	if err != nil {
		return task.FromError[T](err)
	}
	t, ok := ret.(*task.Task[any])
	if !ok {
		return task.FromError[T](errors.Wrapf(ErrUnexpectedResult, "%s returned %T", name, ret))
	}
	return task.Then(t, interop.Cast[T])
}
