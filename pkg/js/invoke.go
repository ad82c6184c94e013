package js

import (
	"reflect"
	"strings"

	"github.com/dop251/goja"
	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/go-go-golems/jsproxy/pkg/proxy"
	"github.com/pkg/errors"
)

var gojaValueType = reflect.TypeOf((*goja.Value)(nil)).Elem()

// gojaObjectHolder is implemented by the object references of this package.
type gojaObjectHolder interface {
	gojaObject() (*goja.Object, *goja.Runtime, error)
}

// invokeOn resolves the dotted identifier relative to target (the global object
// when nil). A function is called with its parent as this; any other value is
// returned as-is and must not be given arguments.
func invokeOn(vm *goja.Runtime, target *goja.Object, identifier string, args []any) (goja.Value, error) {
	if target == nil {
		target = vm.GlobalObject()
	}
	if identifier == "" {
		return nil, errors.Wrap(ErrMemberNotFound, "empty identifier")
	}

	segments := strings.Split(identifier, ".")
	parent := target
	for _, segment := range segments[:len(segments)-1] {
		v := parent.Get(segment)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, errors.Wrapf(ErrMemberNotFound, "%s (at %q)", identifier, segment)
		}
		parent = v.ToObject(vm)
	}

	last := segments[len(segments)-1]
	v := parent.Get(last)
	if v == nil {
		return nil, errors.Wrap(ErrMemberNotFound, identifier)
	}

	fn, ok := goja.AssertFunction(v)
	if !ok {
		if len(args) > 0 {
			return nil, errors.Wrap(ErrNotCallable, identifier)
		}
		return v, nil
	}

	jsArgs, err := toJSValues(vm, args)
	if err != nil {
		return nil, errors.Wrap(err, identifier)
	}
	return fn(parent, jsArgs...)
}

func toJSValues(vm *goja.Runtime, args []any) ([]goja.Value, error) {
	ret := make([]goja.Value, len(args))
	for i, arg := range args {
		v, err := toJSValue(vm, arg)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		ret[i] = v
	}
	return ret, nil
}

func toJSValue(vm *goja.Runtime, arg any) (goja.Value, error) {
	if c, ok := arg.(proxy.Convertible); ok {
		if ref, ok := proxy.TryAs[interop.ObjectReference](c); ok {
			arg = ref
		}
	}
	if ref, ok := arg.(interop.ObjectReference); ok {
		arg = interop.UnwrapReference(ref)
	}
	switch a := arg.(type) {
	case goja.Value:
		return a, nil
	case gojaObjectHolder:
		obj, owner, err := a.gojaObject()
		if err != nil {
			return nil, err
		}
		if owner != vm {
			return nil, ErrForeignReference
		}
		return obj, nil
	default:
		return vm.ToValue(arg), nil
	}
}

// fromJSValue converts a result into returnType. newRef builds the object
// reference when one is requested; null and undefined become nil.
func fromJSValue(vm *goja.Runtime, v goja.Value, returnType reflect.Type, newRef func(*goja.Object) any) (any, error) {
	if v == nil {
		v = goja.Undefined()
	}
	switch returnType {
	case nil, interop.AnyType:
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, nil
		}
		return v.Export(), nil
	case interop.ObjectReferenceType, interop.InProcessObjectReferenceType:
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, nil
		}
		obj, ok := v.(*goja.Object)
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedResult, "%s is not an object", v.String())
		}
		return newRef(obj), nil
	case gojaValueType:
		return v, nil
	}

	dst := reflect.New(returnType)
	if err := vm.ExportTo(v, dst.Interface()); err != nil {
		return nil, errors.Wrapf(ErrUnsupportedResult, "to %s: %v", returnType, err)
	}
	return dst.Elem().Interface(), nil
}

// awaitValue calls resolve with v, or with the settled value if v is a promise.
// Pending promises settle later on the runtime's own goroutine.
func awaitValue(vm *goja.Runtime, v goja.Value, resolve func(goja.Value), reject func(goja.Value)) {
	obj, ok := v.(*goja.Object)
	if !ok {
		resolve(v)
		return
	}
	p, ok := obj.Export().(*goja.Promise)
	if !ok {
		resolve(v)
		return
	}

	switch p.State() {
	case goja.PromiseStateFulfilled:
		resolve(p.Result())
		return
	case goja.PromiseStateRejected:
		reject(p.Result())
		return
	}

	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		reject(vm.ToValue("promise has no then method"))
		return
	}
	_, err := then(obj,
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			resolve(call.Argument(0))
			return goja.Undefined()
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			reject(call.Argument(0))
			return goja.Undefined()
		}),
	)
	if err != nil {
		reject(vm.ToValue(err.Error()))
	}
}
