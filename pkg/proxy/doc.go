// Package proxy turns member access on Go values into invocations against a
// JavaScript interop host.
//
// There are two proxy families. The asynchronous proxies (AsyncRuntime,
// AsyncObjectReference) return a *task.Task for every access; the synchronous
// proxies (SyncRuntime, SyncObjectReference) block. Each family comes in two
// flavors: over the runtime's global object, and over a single object reference.
//
//	rt, _ := proxy.AsDynamic(host)
//	doc, err := rt.Get(ctx, "document").Await(ctx)
//	body, err := doc.Call(ctx, "querySelector", "body").Await(ctx)
//	visible, err := proxy.InvokeAsync[bool](ctx, body, "checkVisibility").Await(ctx)
//
// Get and Call wrap a returned object reference in a new proxy of the same mode so
// accesses chain. A call with one explicit type argument (InvokeAsync, Invoke, or
// InvokeMember with a GenericMemberBinder) returns the value as-is instead.
//
// Converting an async proxy to a sync one (AsSync) succeeds only when the backing
// handle implements the in-process interface. AsAsync always succeeds. Both share
// the backing handle.
package proxy
