package interop

import (
	"context"
	"reflect"
	"testing"

	"github.com/go-go-golems/jsproxy/pkg/task"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	identifier string
	returnType reflect.Type
	args       []any
	value      any
	err        error
}

func (f *fakeRuntime) InvokeAsync(_ context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	f.identifier, f.returnType, f.args = identifier, returnType, args
	if f.err != nil {
		return task.FromError[any](f.err)
	}
	return task.FromResult(f.value)
}

func (f *fakeRuntime) Invoke(identifier string, returnType reflect.Type, args []any) (any, error) {
	f.identifier, f.returnType, f.args = identifier, returnType, args
	return f.value, f.err
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, reflect.Bool, TypeOf[bool]().Kind())
	assert.Equal(t, reflect.Interface, TypeOf[ObjectReference]().Kind())
	assert.Equal(t, ObjectReferenceType, TypeOf[ObjectReference]())
	assert.True(t, InProcessObjectReferenceType.Implements(ObjectReferenceType))
}

func TestCast(t *testing.T) {
	v, err := Cast[int](3)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	s, err := Cast[string](nil)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	_, err = Cast[string](3)
	assert.ErrorIs(t, err, ErrUnexpectedResult)
}

func TestInvokeAsyncTyped(t *testing.T) {
	rt := &fakeRuntime{value: true}
	var _ InProcessRuntime = rt

	v, err := InvokeAsync[bool](context.Background(), rt, "isReady", "abc", 123).Await(context.Background())
	require.NoError(t, err)
	assert.True(t, v)
	assert.Equal(t, "isReady", rt.identifier)
	assert.Equal(t, TypeOf[bool](), rt.returnType)
	assert.Equal(t, []any{"abc", 123}, rt.args)
}

func TestInvokeTypedPassesFaultThrough(t *testing.T) {
	boom := errors.New("boom")
	rt := &fakeRuntime{err: boom}

	_, err := Invoke[bool](rt, "isReady")
	assert.True(t, err == boom)
}

type wrappedReference struct {
	ObjectReference
	inner ObjectReference
}

func (w wrappedReference) UnwrapReference() ObjectReference { return w.inner }

func TestUnwrapReference(t *testing.T) {
	var base ObjectReference = wrappedReference{}
	once := wrappedReference{inner: base}
	twice := wrappedReference{inner: once}

	assert.Equal(t, base, UnwrapReference(twice))
	assert.Equal(t, base, UnwrapReference(base))
}
