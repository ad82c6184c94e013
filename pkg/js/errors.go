package js

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/go-go-golems/jsproxy/pkg/js/runtimebridge"
	"github.com/pkg/errors"
)

var (
	ErrDisposed          = errors.New("object reference has been disposed")
	ErrMemberNotFound    = errors.New("member not found")
	ErrNotCallable       = errors.New("member is not a function")
	ErrForeignReference  = errors.New("object reference belongs to another runtime")
	ErrEngineNotStarted  = errors.New("engine has not been started")
	ErrEngineStarted     = errors.New("engine already started")
	// ErrEngineStopped faults work handed to an engine after Stop or Close.
	ErrEngineStopped     = runtimebridge.ErrClosed
	ErrUnsupportedResult = errors.New("cannot convert result")
)

// RejectionError is the fault of an asynchronous invocation whose promise was
// rejected.
type RejectionError struct {
	Identifier string
	// Reason is the exported rejection reason.
	Reason  any
	message string
}

func newRejectionError(identifier string, reason goja.Value) *RejectionError {
	e := &RejectionError{Identifier: identifier}
	if reason != nil {
		e.Reason = reason.Export()
		e.message = reason.String()
	}
	return e
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: promise rejected: %s", e.Identifier, e.message)
}

func errorFromPanic(identifier string, r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrapf(err, "%s: panic", identifier)
	}
	return errors.Errorf("%s: panic: %v", identifier, r)
}
