package proxy

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// compileAtUses is the number of reflective lookups after which the specialized
// resolver is built.
const compileAtUses = 50

type typeArgumentsFunc func(Binder) []reflect.Type

type typeArgumentsProvider interface {
	TypeArguments() []reflect.Type
}

var (
	typeSliceType = reflect.TypeOf([]reflect.Type(nil))

	typeArgumentsResolver atomic.Pointer[typeArgumentsFunc]
	typeArgumentsUses     atomic.Int64
	typeArgumentsCompiled atomic.Bool

	// reflect.Type -> typeArgumentsAccessor
	typeArgumentsAccessors sync.Map
)

func init() {
	resetTypeArgumentsResolver()
}

func resetTypeArgumentsResolver() {
	f := typeArgumentsFunc(reflectTypeArguments)
	typeArgumentsUses.Store(0)
	typeArgumentsCompiled.Store(false)
	typeArgumentsResolver.Store(&f)
}

// TypeArguments returns the explicit type arguments of a call site, in order. It
// returns nil when the binder carries none and never validates their number.
func TypeArguments(b Binder) []reflect.Type {
	if b == nil {
		return nil
	}
	return (*typeArgumentsResolver.Load())(b)
}

func reflectTypeArguments(b Binder) []reflect.Type {
	if typeArgumentsUses.Add(1) == compileAtUses {
		go compileTypeArguments()
	}
	return lookupTypeArguments(reflect.ValueOf(b))
}

// lookupTypeArguments resolves the binder shape from scratch on every call.
func lookupTypeArguments(v reflect.Value) []reflect.Type {
	if m := v.MethodByName("TypeArguments"); m.IsValid() {
		mt := m.Type()
		if mt.NumIn() == 0 && mt.NumOut() == 1 && mt.Out(0) == typeSliceType {
			return m.Call(nil)[0].Interface().([]reflect.Type)
		}
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	sf, ok := v.Type().FieldByName("TypeArguments")
	if !ok || !sf.IsExported() || sf.Type != typeSliceType {
		return nil
	}
	f, err := v.FieldByIndexErr(sf.Index)
	if err != nil {
		return nil
	}
	return f.Interface().([]reflect.Type)
}

func compileTypeArguments() {
	f := typeArgumentsFunc(compiledTypeArguments)
	typeArgumentsResolver.Store(&f)
	typeArgumentsCompiled.Store(true)
	log.Debug().
		Int64("uses", typeArgumentsUses.Load()).
		Msg("Swapped in compiled type argument resolver")
}

func compiledTypeArguments(b Binder) []reflect.Type {
	switch b := b.(type) {
	case MemberBinder:
		return nil
	case GenericMemberBinder:
		return b.TypeArguments
	case *GenericMemberBinder:
		if b == nil {
			return nil
		}
		return b.TypeArguments
	case typeArgumentsProvider:
		return b.TypeArguments()
	}
	v := reflect.ValueOf(b)
	return typeArgumentsAccessorFor(v.Type())(v)
}

type typeArgumentsAccessor func(reflect.Value) []reflect.Type

func noTypeArguments(reflect.Value) []reflect.Type { return nil }

func typeArgumentsAccessorFor(t reflect.Type) typeArgumentsAccessor {
	if a, ok := typeArgumentsAccessors.Load(t); ok {
		return a.(typeArgumentsAccessor)
	}
	a, _ := typeArgumentsAccessors.LoadOrStore(t, buildTypeArgumentsAccessor(t))
	return a.(typeArgumentsAccessor)
}

func buildTypeArgumentsAccessor(t reflect.Type) typeArgumentsAccessor {
	derefs := 0
	st := t
	for st.Kind() == reflect.Pointer {
		st = st.Elem()
		derefs++
	}
	if st.Kind() != reflect.Struct {
		return noTypeArguments
	}
	sf, ok := st.FieldByName("TypeArguments")
	if !ok || !sf.IsExported() || sf.Type != typeSliceType {
		return noTypeArguments
	}
	index := sf.Index
	return func(v reflect.Value) []reflect.Type {
		for i := 0; i < derefs; i++ {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		f, err := v.FieldByIndexErr(index)
		if err != nil {
			return nil
		}
		return f.Interface().([]reflect.Type)
	}
}
