// Package tracing instruments the lifecycle of HTTP requests.
//
// A TraceConfig owns one freeze-once signal per lifecycle event. Listeners
// are registered during session setup, the config is frozen, and from then on
// the request pipeline creates one Trace per request and calls the matching
// Send method at each lifecycle moment. Every dispatch blocks the request
// until all listeners for that event have run, in registration order, so a
// listener can impose backpressure or abort the request by returning an
// error.
//
// This package performs no I/O and keeps no global state; everything is owned
// by an explicit TraceConfig or Trace instance.
package tracing

import (
	"context"
	"net/http"
	"net/url"
)

// A Session identifies the owner of a trace configuration. Listeners receive
// it on every dispatch so they can tell apart events from different sessions;
// they may type-assert it to reach the concrete session.
type Session interface {
	Name() string
}

// A Dispatcher fires lifecycle events for one request. It erases the trace
// context type, so a pipeline can drive traces built from configurations
// with heterogeneous context types through one interface.
//
// Each Send method builds the event payload, dispatches it to the matching
// signal, and returns once every listener has completed. The first listener
// error aborts the chain and is returned unchanged.
type Dispatcher interface {
	SendRequestStart(
		ctx context.Context,
		method string, url *url.URL, headers http.Header) error
	SendRequestChunkSent(
		ctx context.Context,
		method string, url *url.URL, chunk []byte) error
	SendResponseChunkReceived(
		ctx context.Context,
		method string, url *url.URL, chunk []byte) error
	SendRequestEnd(
		ctx context.Context,
		method string, url *url.URL, headers http.Header,
		response *http.Response) error
	SendRequestException(
		ctx context.Context,
		method string, url *url.URL, headers http.Header,
		reqErr error) error
	SendRequestRedirect(
		ctx context.Context,
		method string, url *url.URL, headers http.Header,
		response *http.Response) error
	SendConnectionQueuedStart(ctx context.Context) error
	SendConnectionQueuedEnd(ctx context.Context) error
	SendConnectionCreateStart(ctx context.Context) error
	SendConnectionCreateEnd(ctx context.Context) error
	SendConnectionReuseconn(ctx context.Context) error
	SendDNSResolveHostStart(ctx context.Context, host string) error
	SendDNSResolveHostEnd(ctx context.Context, host string) error
	SendDNSCacheHit(ctx context.Context, host string) error
	SendDNSCacheMiss(ctx context.Context, host string) error
	SendRequestHeadersSent(
		ctx context.Context,
		method string, url *url.URL, headers http.Header) error
}

// An Instrument is the context-type-erased view of a TraceConfig. A session
// holds its trace configurations through this interface so configurations
// with different context types can coexist.
type Instrument interface {
	// Freeze locks all signals of the configuration.
	Freeze()

	// Frozen reports whether the configuration has been frozen.
	Frozen() bool

	// Trace binds a new per-request dispatcher. The context factory is
	// invoked with requestCtx; the resulting context instance is private to
	// the returned dispatcher.
	Trace(sess Session, requestCtx any) Dispatcher
}
