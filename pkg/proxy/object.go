package proxy

import (
	"reflect"

	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/pkg/errors"
)

// AsyncObjectReference invokes JavaScript functions asynchronously on a single
// JavaScript object.
type AsyncObjectReference struct {
	asyncDispatcher
	jsObject interop.ObjectReference
}

var _ AsyncProxy = (*AsyncObjectReference)(nil)

func NewAsyncObjectReference(jsObject interop.ObjectReference) (*AsyncObjectReference, error) {
	if isNil(jsObject) {
		return nil, errors.Wrap(ErrNilReference, "jsObject")
	}
	return newAsyncObjectReference(jsObject), nil
}

func newAsyncObjectReference(jsObject interop.ObjectReference) *AsyncObjectReference {
	return &AsyncObjectReference{
		asyncDispatcher: asyncDispatcher{invokeAsync: jsObject.InvokeAsync},
		jsObject:        jsObject,
	}
}

// JSObject returns the backing object reference.
func (p *AsyncObjectReference) JSObject() interop.ObjectReference {
	return p.jsObject
}

// AsSync returns a SyncObjectReference over the same object reference. It fails
// with ErrNotInProcess if the reference cannot invoke synchronously.
func (p *AsyncObjectReference) AsSync() (*SyncObjectReference, error) {
	inProcess, ok := p.jsObject.(interop.InProcessObjectReference)
	if !ok {
		return nil, errors.Wrapf(ErrNotInProcess, "%T", p.jsObject)
	}
	return newSyncObjectReference(inProcess), nil
}

func (p *AsyncObjectReference) Unwrap() interop.ObjectReference {
	return p.jsObject
}

func (p *AsyncObjectReference) ConvertTo(target reflect.Type) (any, bool) {
	return convertHandle(p.jsObject, interop.ObjectReferenceType, target)
}

// SyncObjectReference invokes JavaScript functions synchronously on a single
// JavaScript object.
type SyncObjectReference struct {
	syncDispatcher
	jsObject interop.InProcessObjectReference
}

var _ SyncProxy = (*SyncObjectReference)(nil)

func NewSyncObjectReference(jsObject interop.InProcessObjectReference) (*SyncObjectReference, error) {
	if isNil(jsObject) {
		return nil, errors.Wrap(ErrNilReference, "jsObject")
	}
	return newSyncObjectReference(jsObject), nil
}

func newSyncObjectReference(jsObject interop.InProcessObjectReference) *SyncObjectReference {
	return &SyncObjectReference{
		syncDispatcher: syncDispatcher{invoke: jsObject.Invoke},
		jsObject:       jsObject,
	}
}

func (p *SyncObjectReference) JSObject() interop.InProcessObjectReference {
	return p.jsObject
}

// AsAsync returns an AsyncObjectReference over the same object reference.
func (p *SyncObjectReference) AsAsync() *AsyncObjectReference {
	return newAsyncObjectReference(p.jsObject)
}

func (p *SyncObjectReference) Unwrap() interop.InProcessObjectReference {
	return p.jsObject
}

func (p *SyncObjectReference) ConvertTo(target reflect.Type) (any, bool) {
	return convertHandle(p.jsObject, interop.InProcessObjectReferenceType, target)
}
