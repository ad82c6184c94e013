package proxy

import (
	"reflect"

	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SyncProxy is the blocking twin of AsyncProxy. Faults from the backing handle are
// returned as the identical error value on every path.
type SyncProxy interface {
	Get(name string) (*SyncObjectReference, error)
	Call(name string, args ...any) (*SyncObjectReference, error)
	InvokeMember(binder Binder, args ...any) (any, error)
}

type syncInvokeFunc func(identifier string, returnType reflect.Type, args []any) (any, error)

type syncDispatcher struct {
	invoke syncInvokeFunc
}

func (d syncDispatcher) Get(name string) (*SyncObjectReference, error) {
	log.Trace().Str("member", name).Str("mode", "sync").Msg("get member")
	return wrapSync(name, d.invoke, nil)
}

func (d syncDispatcher) Call(name string, args ...any) (*SyncObjectReference, error) {
	log.Trace().Str("member", name).Str("mode", "sync").Int("args", len(args)).Msg("call member")
	return wrapSync(name, d.invoke, args)
}

func (d syncDispatcher) InvokeMember(binder Binder, args ...any) (any, error) {
	if binder == nil {
		return nil, errors.Wrap(ErrNilReference, "binder")
	}
	inv := describe(binder, args)
	switch len(inv.TypeArguments) {
	case 0:
		p, err := d.Call(inv.Name, inv.Args...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case 1:
		log.Trace().
			Str("member", inv.Name).
			Str("mode", "sync").
			Stringer("returnType", inv.TypeArguments[0]).
			Int("args", len(inv.Args)).
			Msg("call generic member")
		return d.invoke(inv.Name, inv.TypeArguments[0], inv.Args)
	default:
		return nil, errors.Wrapf(ErrTypeArgumentArity, "%s: got %d", inv.Name, len(inv.TypeArguments))
	}
}

func wrapSync(identifier string, invoke syncInvokeFunc, args []any) (*SyncObjectReference, error) {
	v, err := invoke(identifier, interop.InProcessObjectReferenceType, args)
	if err != nil {
		return nil, err
	}
	if isNil(v) {
		return nil, errors.Wrap(ErrNullResult, identifier)
	}
	jsObject, ok := v.(interop.InProcessObjectReference)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedResult, "%s returned %T", identifier, v)
	}
	return newSyncObjectReference(jsObject), nil
}

// Invoke calls name on p with a single explicit type argument T and returns the
// result without wrapping it in a proxy.
func Invoke[T any](p SyncProxy, name string, args ...any) (T, error) {
	var zero T
	ret, err := p.InvokeMember(GenericMember(name, interop.TypeOf[T]()), args...)
	if err != nil {
		return zero, err
	}
	return interop.Cast[T](ret)
}
