package observe

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/go-go-golems/jsproxy/pkg/js"
	"github.com/go-go-golems/jsproxy/pkg/proxy"
	"github.com/go-go-golems/jsproxy/pkg/task"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRuntime struct {
	next func() *task.Task[any]
}

func (s stubRuntime) InvokeAsync(context.Context, string, reflect.Type, []any) *task.Task[any] {
	return s.next()
}

func newObserver(t *testing.T) (*Observer, <-chan InvocationEvent) {
	t.Helper()
	pubSub := NewGoChannel(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = pubSub.Close()
	})

	events, err := Subscribe(ctx, pubSub, "")
	require.NoError(t, err)
	return NewObserver(pubSub, ""), events
}

func nextEvent(t *testing.T, events <-chan InvocationEvent) InvocationEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no invocation event")
		return InvocationEvent{}
	}
}

func newVMRuntime(t *testing.T) *js.VMRuntime {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(`
function makeThing(name) {
	return { name: name, greet: function(prefix) { return prefix + ", " + this.name; } };
}
function nameOf(thing) { return thing.name; }
`)
	require.NoError(t, err)
	return js.NewVMRuntime(vm)
}

func TestDecoratorsKeepCapabilities(t *testing.T) {
	o, _ := newObserver(t)

	_, ok := o.Runtime(newVMRuntime(t)).(interop.InProcessRuntime)
	assert.True(t, ok)

	_, ok = o.Runtime(stubRuntime{}).(interop.InProcessRuntime)
	assert.False(t, ok)

	p, err := proxy.AsDynamic(o.Runtime(stubRuntime{}))
	require.NoError(t, err)
	_, err = p.AsSync()
	assert.ErrorIs(t, err, proxy.ErrNotInProcess)
}

func TestSyncInvocationsArePublished(t *testing.T) {
	o, events := newObserver(t)
	rt := o.Runtime(newVMRuntime(t)).(interop.InProcessRuntime)
	p, err := proxy.NewSyncRuntime(rt)
	require.NoError(t, err)

	thing, err := p.Call("makeThing", "Ada")
	require.NoError(t, err)

	ev := nextEvent(t, events)
	assert.Equal(t, "makeThing", ev.Identifier)
	assert.Equal(t, "runtime", ev.Target)
	assert.Equal(t, ModeSync, ev.Mode)
	assert.Equal(t, "completed", ev.Status)
	assert.Equal(t, []any{"Ada"}, ev.Args)
	assert.NotEmpty(t, ev.ID)
	assert.True(t, strings.HasPrefix(ev.CorrelationID, "gen_"))

	greeting, err := proxy.Invoke[string](thing, "greet", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi, Ada", greeting)

	ev = nextEvent(t, events)
	assert.Equal(t, "greet", ev.Identifier)
	assert.Equal(t, "object", ev.Target)
	assert.Equal(t, "string", ev.ReturnType)

	name, err := proxy.Invoke[string](p, "nameOf", thing)
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	ev = nextEvent(t, events)
	assert.Equal(t, []any{"<*proxy.SyncObjectReference>"}, ev.Args)
}

func TestAsyncFaultsKeepIdentity(t *testing.T) {
	o, events := newObserver(t)
	boom := errors.New("boom")
	rt := o.Runtime(stubRuntime{next: func() *task.Task[any] { return task.FromError[any](boom) }})

	ctx := ContextWithCorrelationID(context.Background(), "abc")
	_, err := rt.InvokeAsync(ctx, "fail", interop.AnyType, nil).Await(ctx)
	assert.True(t, err == boom)

	ev := nextEvent(t, events)
	assert.Equal(t, "faulted", ev.Status)
	assert.Equal(t, "boom", ev.Error)
	assert.Equal(t, ModeAsync, ev.Mode)
	assert.Equal(t, "abc", ev.CorrelationID)
}

func TestAsyncCancellationIsPublished(t *testing.T) {
	o, events := newObserver(t)
	rt := o.Runtime(stubRuntime{next: task.Canceled[any]})

	tk := rt.InvokeAsync(context.Background(), "never", interop.AnyType, nil)
	_, err := tk.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, tk.IsCanceled())

	assert.Equal(t, "canceled", nextEvent(t, events).Status)
}

func TestArgumentsAreSnapshotted(t *testing.T) {
	o, events := newObserver(t)
	cs := task.NewCompletionSource[any]()
	rt := o.Runtime(stubRuntime{next: cs.Task})

	arg := map[string]any{"n": 1}
	tk := rt.InvokeAsync(context.Background(), "store", interop.AnyType, []any{arg, func() {}})
	arg["n"] = 2
	cs.TrySetResult("ok")

	v, err := tk.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	ev := nextEvent(t, events)
	require.Len(t, ev.Args, 2)
	assert.Equal(t, map[string]any{"n": float64(1)}, ev.Args[0])
	assert.Equal(t, "<func()>", ev.Args[1])
	assert.GreaterOrEqual(t, ev.Duration, time.Duration(0))
}

func TestReturnedHandlesAreDecorated(t *testing.T) {
	o, events := newObserver(t)
	rt := newVMRuntime(t)
	observed := o.Runtime(rt)

	p, err := proxy.AsDynamic(observed)
	require.NoError(t, err)
	ctx := context.Background()

	thing, err := p.Call(ctx, "makeThing", "Grace").Await(ctx)
	require.NoError(t, err)
	_ = nextEvent(t, events)

	_, ok := thing.JSObject().(interop.InProcessObjectReference)
	assert.True(t, ok)
	assert.IsType(t, &js.VMObjectReference{}, interop.UnwrapReference(thing.JSObject()))

	greeting, err := proxy.InvokeAsync[string](ctx, thing, "greet", "hello").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello, Grace", greeting)
	assert.Equal(t, "object", nextEvent(t, events).Target)
}
