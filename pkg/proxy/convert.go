package proxy

import (
	"reflect"

	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/pkg/errors"
)

// Convertible is implemented by all proxies. ConvertTo yields the backing handle
// when a value of the handle's declared type is assignable to target.
type Convertible interface {
	ConvertTo(target reflect.Type) (any, bool)
}

func convertHandle(handle any, declared reflect.Type, target reflect.Type) (any, bool) {
	if target == nil || !declared.AssignableTo(target) {
		return nil, false
	}
	return handle, true
}

// As unwraps p into T, failing with ErrInvalidConversion when T cannot hold the
// backing handle.
func As[T any](p Convertible) (T, error) {
	v, ok := TryAs[T](p)
	if !ok {
		return v, errors.Wrapf(ErrInvalidConversion, "cannot convert %T to %s", p, interop.TypeOf[T]())
	}
	return v, nil
}

// TryAs unwraps p into T and reports whether it could.
func TryAs[T any](p Convertible) (T, bool) {
	var zero T
	if isNil(p) {
		return zero, false
	}
	v, ok := p.ConvertTo(interop.TypeOf[T]())
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
