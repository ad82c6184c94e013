package proxy

import (
	"context"
	"reflect"

	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/go-go-golems/jsproxy/pkg/task"
	"github.com/stretchr/testify/mock"
)

type mockObjectReference struct {
	mock.Mock
}

func (m *mockObjectReference) InvokeAsync(_ context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	ret := m.Called(identifier, returnType, args)
	return ret.Get(0).(*task.Task[any])
}

func (m *mockObjectReference) DisposeAsync(context.Context) error {
	return m.Called().Error(0)
}

type mockInProcessObjectReference struct {
	mockObjectReference
}

func (m *mockInProcessObjectReference) Invoke(identifier string, returnType reflect.Type, args []any) (any, error) {
	ret := m.Called(identifier, returnType, args)
	return ret.Get(0), ret.Error(1)
}

func (m *mockInProcessObjectReference) Dispose() error {
	return m.Called().Error(0)
}

type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) InvokeAsync(_ context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	ret := m.Called(identifier, returnType, args)
	return ret.Get(0).(*task.Task[any])
}

type mockInProcessRuntime struct {
	mockRuntime
}

func (m *mockInProcessRuntime) Invoke(identifier string, returnType reflect.Type, args []any) (any, error) {
	ret := m.Called(identifier, returnType, args)
	return ret.Get(0), ret.Error(1)
}

var (
	_ interop.InProcessObjectReference = (*mockInProcessObjectReference)(nil)
	_ interop.InProcessRuntime         = (*mockInProcessRuntime)(nil)

	boolType = interop.TypeOf[bool]()

	noArgs = mock.MatchedBy(func(args []any) bool { return len(args) == 0 })
)

func abc123() []any {
	return []any{"abc", 123}
}
