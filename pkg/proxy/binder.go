package proxy

import (
	"reflect"
)

// Binder describes a call site: the member being invoked and, optionally, the
// explicit type arguments supplied with it.
//
// Binders from other packages can expose type arguments either through a
// TypeArguments() []reflect.Type method or an exported
// TypeArguments []reflect.Type field. See TypeArguments.
type Binder interface {
	Name() string
}

type MemberBinder struct {
	MemberName string
}

func (b MemberBinder) Name() string { return b.MemberName }

// Member returns a binder for name without type arguments.
func Member(name string) MemberBinder {
	return MemberBinder{MemberName: name}
}

type GenericMemberBinder struct {
	MemberName    string
	TypeArguments []reflect.Type
}

func (b GenericMemberBinder) Name() string { return b.MemberName }

// GenericMember returns a binder for name carrying typeArguments as given. The
// arity is checked by the proxy at dispatch time.
func GenericMember(name string, typeArguments ...reflect.Type) GenericMemberBinder {
	return GenericMemberBinder{MemberName: name, TypeArguments: typeArguments}
}

// Invocation is the per-dispatch description of one member access.
type Invocation struct {
	Name          string
	Args          []any
	TypeArguments []reflect.Type
}

func describe(b Binder, args []any) Invocation {
	return Invocation{
		Name:          b.Name(),
		Args:          args,
		TypeArguments: TypeArguments(b),
	}
}
