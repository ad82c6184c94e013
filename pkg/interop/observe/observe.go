// Package observe decorates interop handles so that every invocation is published
// as an InvocationEvent on a watermill topic.
//
// Decorated handles keep the capabilities of the handle they wrap: an in-process
// runtime stays an interop.InProcessRuntime, so proxies built over it can still
// switch to synchronous mode. Object references returned by an invocation are
// decorated as well.
package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/go-go-golems/jsproxy/pkg/task"
	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultTopic = "jsproxy.invocations"

const subscribeBuffer = 64

type Mode string

const (
	ModeAsync Mode = "async"
	ModeSync  Mode = "sync"
)

type InvocationEvent struct {
	ID            string        `json:"id"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Target        string        `json:"target"`
	Identifier    string        `json:"identifier"`
	Mode          Mode          `json:"mode"`
	ReturnType    string        `json:"return_type,omitempty"`
	Args          []any         `json:"args,omitempty"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}

// Observer publishes invocation events.
type Observer struct {
	publisher message.Publisher
	topic     string
}

// NewObserver publishes to topic, or DefaultTopic when topic is empty.
func NewObserver(publisher message.Publisher, topic string) *Observer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Observer{
		publisher: CorrelationPublisherDecorator{Publisher: publisher},
		topic:     topic,
	}
}

func (o *Observer) Topic() string {
	return o.topic
}

// Runtime decorates rt. The result implements interop.InProcessRuntime exactly
// when rt does.
func (o *Observer) Runtime(rt interop.Runtime) interop.Runtime {
	base := &observedRuntime{o: o, inner: rt}
	if inProcess, ok := rt.(interop.InProcessRuntime); ok {
		return &observedInProcessRuntime{observedRuntime: base, inner: inProcess}
	}
	return base
}

// Object decorates ref. The result implements interop.InProcessObjectReference
// exactly when ref does.
func (o *Observer) Object(ref interop.ObjectReference) interop.ObjectReference {
	base := &observedObject{o: o, inner: ref}
	if inProcess, ok := ref.(interop.InProcessObjectReference); ok {
		return &observedInProcessObject{observedObject: base, inner: inProcess}
	}
	return base
}

type asyncFunc func(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any]

type syncFunc func(identifier string, returnType reflect.Type, args []any) (any, error)

func (o *Observer) start(ctx context.Context, target string, mode Mode, identifier string, returnType reflect.Type, args []any) *InvocationEvent {
	ev := &InvocationEvent{
		ID:         uuid.NewString(),
		Target:     target,
		Identifier: identifier,
		Mode:       mode,
		Args:       snapshot(args),
		StartedAt:  time.Now(),
	}
	if returnType != nil {
		ev.ReturnType = returnType.String()
	}
	if ctx != nil {
		if v, ok := ctx.Value(correlationIDKey).(string); ok {
			ev.CorrelationID = v
		}
	}
	return ev
}

func (o *Observer) invokeAsync(ctx context.Context, target string, next asyncFunc, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	ev := o.start(ctx, target, ModeAsync, identifier, returnType, args)
	out := task.NewCompletionSource[any]()
	next(ctx, identifier, returnType, args).ContinueWith(func(t *task.Task[any]) {
		v, err := t.Result().Value()
		// published before out settles so awaiting callers see the event first
		o.finish(ctx, ev, t.Status().String(), err)
		switch t.Status() {
		case task.StatusCompleted:
			out.TrySetResult(o.decorate(v))
		case task.StatusCanceled:
			out.TrySetCanceled()
		default:
			out.TrySetError(err)
		}
	})
	return out.Task()
}

func (o *Observer) invokeSync(target string, next syncFunc, identifier string, returnType reflect.Type, args []any) (any, error) {
	ev := o.start(nil, target, ModeSync, identifier, returnType, args)
	v, err := next(identifier, returnType, args)
	status := task.StatusCompleted
	if err != nil {
		status = task.StatusFaulted
	}
	o.finish(context.Background(), ev, status.String(), err)
	if err != nil {
		return nil, err
	}
	return o.decorate(v), nil
}

func (o *Observer) finish(ctx context.Context, ev *InvocationEvent, status string, err error) {
	ev.Status = status
	ev.Duration = time.Since(ev.StartedAt)
	if err != nil {
		ev.Error = err.Error()
	}
	if err := o.publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("identifier", ev.Identifier).Msg("failed to publish invocation event")
	}
}

func (o *Observer) publish(ctx context.Context, ev *InvocationEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal invocation event")
	}
	msg := message.NewMessage(ev.ID, b)
	if ctx != nil {
		msg.SetContext(context.WithoutCancel(ctx))
	}
	return o.publisher.Publish(o.topic, msg)
}

func (o *Observer) decorate(v any) any {
	ref, ok := v.(interop.ObjectReference)
	if !ok || ref == nil {
		return v
	}
	return o.Object(ref)
}

// snapshot copies args so later mutation by the caller does not change the
// published event. Handles and values JSON cannot encode are recorded by type.
func snapshot(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	ret := make([]any, len(args))
	for i, arg := range args {
		switch arg.(type) {
		case interop.ObjectReference, interop.Runtime, interface {
			ConvertTo(reflect.Type) (any, bool)
		}:
			ret[i] = fmt.Sprintf("<%T>", arg)
			continue
		}
		if _, err := json.Marshal(arg); err != nil {
			ret[i] = fmt.Sprintf("<%T>", arg)
			continue
		}
		ret[i] = clone.Clone(arg)
	}
	return ret
}

type observedRuntime struct {
	o     *Observer
	inner interop.Runtime
}

func (r *observedRuntime) InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	return r.o.invokeAsync(ctx, "runtime", r.inner.InvokeAsync, identifier, returnType, args)
}

type observedInProcessRuntime struct {
	*observedRuntime
	inner interop.InProcessRuntime
}

func (r *observedInProcessRuntime) Invoke(identifier string, returnType reflect.Type, args []any) (any, error) {
	return r.o.invokeSync("runtime", r.inner.Invoke, identifier, returnType, args)
}

type observedObject struct {
	o     *Observer
	inner interop.ObjectReference
}

func (r *observedObject) InvokeAsync(ctx context.Context, identifier string, returnType reflect.Type, args []any) *task.Task[any] {
	return r.o.invokeAsync(ctx, "object", r.inner.InvokeAsync, identifier, returnType, args)
}

func (r *observedObject) DisposeAsync(ctx context.Context) error {
	return r.inner.DisposeAsync(ctx)
}

func (r *observedObject) UnwrapReference() interop.ObjectReference {
	return r.inner
}

type observedInProcessObject struct {
	*observedObject
	inner interop.InProcessObjectReference
}

func (r *observedInProcessObject) Invoke(identifier string, returnType reflect.Type, args []any) (any, error) {
	return r.o.invokeSync("object", r.inner.Invoke, identifier, returnType, args)
}

func (r *observedInProcessObject) Dispose() error {
	return r.inner.Dispose()
}

// Subscribe decodes the invocation events published on topic. The channel is
// closed when ctx is done.
func Subscribe(ctx context.Context, subscriber message.Subscriber, topic string) (<-chan InvocationEvent, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	messages, err := subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe to %s", topic)
	}

	out := make(chan InvocationEvent, subscribeBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev InvocationEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Warn().Err(err).Str("message", msg.UUID).Msg("failed to decode invocation event")
				msg.Ack()
				continue
			}
			if ev.CorrelationID == "" {
				ev.CorrelationID = msg.Metadata.Get(correlationIDMessageMetadataKey)
			}
			select {
			case out <- ev:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}
