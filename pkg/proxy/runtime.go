package proxy

import (
	"reflect"

	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/pkg/errors"
)

var (
	runtimeType          = interop.TypeOf[interop.Runtime]()
	inProcessRuntimeType = interop.TypeOf[interop.InProcessRuntime]()
)

// AsyncRuntime invokes JavaScript functions asynchronously on the JavaScript
// global object.
type AsyncRuntime struct {
	asyncDispatcher
	jsRuntime interop.Runtime
}

var _ AsyncProxy = (*AsyncRuntime)(nil)

func NewAsyncRuntime(jsRuntime interop.Runtime) (*AsyncRuntime, error) {
	if isNil(jsRuntime) {
		return nil, errors.Wrap(ErrNilReference, "jsRuntime")
	}
	return newAsyncRuntime(jsRuntime), nil
}

func newAsyncRuntime(jsRuntime interop.Runtime) *AsyncRuntime {
	return &AsyncRuntime{
		asyncDispatcher: asyncDispatcher{invokeAsync: jsRuntime.InvokeAsync},
		jsRuntime:       jsRuntime,
	}
}

func (p *AsyncRuntime) JSRuntime() interop.Runtime {
	return p.jsRuntime
}

// AsSync returns a SyncRuntime over the same runtime, or ErrNotInProcess.
func (p *AsyncRuntime) AsSync() (*SyncRuntime, error) {
	inProcess, ok := p.jsRuntime.(interop.InProcessRuntime)
	if !ok {
		return nil, errors.Wrapf(ErrNotInProcess, "%T", p.jsRuntime)
	}
	return newSyncRuntime(inProcess), nil
}

func (p *AsyncRuntime) Unwrap() interop.Runtime {
	return p.jsRuntime
}

func (p *AsyncRuntime) ConvertTo(target reflect.Type) (any, bool) {
	return convertHandle(p.jsRuntime, runtimeType, target)
}

// SyncRuntime invokes JavaScript functions synchronously on the JavaScript
// global object.
type SyncRuntime struct {
	syncDispatcher
	jsRuntime interop.InProcessRuntime
}

var _ SyncProxy = (*SyncRuntime)(nil)

func NewSyncRuntime(jsRuntime interop.InProcessRuntime) (*SyncRuntime, error) {
	if isNil(jsRuntime) {
		return nil, errors.Wrap(ErrNilReference, "jsRuntime")
	}
	return newSyncRuntime(jsRuntime), nil
}

func newSyncRuntime(jsRuntime interop.InProcessRuntime) *SyncRuntime {
	return &SyncRuntime{
		syncDispatcher: syncDispatcher{invoke: jsRuntime.Invoke},
		jsRuntime:      jsRuntime,
	}
}

func (p *SyncRuntime) JSRuntime() interop.InProcessRuntime {
	return p.jsRuntime
}

func (p *SyncRuntime) AsAsync() *AsyncRuntime {
	return newAsyncRuntime(p.jsRuntime)
}

func (p *SyncRuntime) Unwrap() interop.InProcessRuntime {
	return p.jsRuntime
}

func (p *SyncRuntime) ConvertTo(target reflect.Type) (any, bool) {
	return convertHandle(p.jsRuntime, inProcessRuntimeType, target)
}

// AsDynamic returns an asynchronous proxy over jsRuntime.
func AsDynamic(jsRuntime interop.Runtime) (*AsyncRuntime, error) {
	return NewAsyncRuntime(jsRuntime)
}

// AsDynamicObject returns an asynchronous proxy over jsObject.
func AsDynamicObject(jsObject interop.ObjectReference) (*AsyncObjectReference, error) {
	return NewAsyncObjectReference(jsObject)
}
