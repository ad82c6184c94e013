package proxy

import (
	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/pkg/errors"
)

var (
	// ErrNilReference is returned when a proxy is constructed without a backing handle.
	ErrNilReference = errors.New("required reference is nil")
	// ErrNotInProcess is returned when converting to a sync proxy over an
	// asynchronous-only handle.
	ErrNotInProcess = errors.New("backing handle does not support synchronous invocation")
	// ErrTypeArgumentArity is returned when a call site supplies more than one type
	// argument.
	ErrTypeArgumentArity = errors.New("type arguments must have exactly one item")
	// ErrNullResult is returned when a member that should yield an object
	// reference yields null or undefined.
	ErrNullResult = errors.New("member returned a null object reference")
	// ErrInvalidConversion is returned when unwrapping a proxy to an incompatible type.
	ErrInvalidConversion = errors.New("invalid proxy conversion")
	// ErrUnexpectedResult is returned when a handle yields a value that is not of
	// the requested return type. It is interop.ErrUnexpectedResult.
	ErrUnexpectedResult = interop.ErrUnexpectedResult
)
