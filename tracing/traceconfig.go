package tracing

import (
	"github.com/reqtrace/reqtrace/signal"
)

// A ContextFactory builds a fresh trace context for one request. It receives
// the per-request seed value the pipeline caller supplied and must return a
// new, independent instance on every call.
type ContextFactory[C any] func(requestCtx any) C

// A TraceConfig owns one signal per lifecycle event plus the context factory
// that produces the per-request correlation object. It is created once per
// session, has listeners registered through the On* accessors, is frozen
// before the first request runs, and is read-only thereafter. A frozen
// TraceConfig is safe for concurrent use by any number of requests.
type TraceConfig[C any] struct {
	onRequestStart          *signal.Signal[Session, C, RequestStartInfo]
	onRequestChunkSent      *signal.Signal[Session, C, RequestChunkSentInfo]
	onResponseChunkReceived *signal.Signal[Session, C, ResponseChunkReceivedInfo]
	onRequestEnd            *signal.Signal[Session, C, RequestEndInfo]
	onRequestException      *signal.Signal[Session, C, RequestExceptionInfo]
	onRequestRedirect       *signal.Signal[Session, C, RequestRedirectInfo]
	onConnectionQueuedStart *signal.Signal[Session, C, ConnectionQueuedStartInfo]
	onConnectionQueuedEnd   *signal.Signal[Session, C, ConnectionQueuedEndInfo]
	onConnectionCreateStart *signal.Signal[Session, C, ConnectionCreateStartInfo]
	onConnectionCreateEnd   *signal.Signal[Session, C, ConnectionCreateEndInfo]
	onConnectionReuseconn   *signal.Signal[Session, C, ConnectionReuseconnInfo]
	onDNSResolveHostStart   *signal.Signal[Session, C, DNSResolveHostStartInfo]
	onDNSResolveHostEnd     *signal.Signal[Session, C, DNSResolveHostEndInfo]
	onDNSCacheHit           *signal.Signal[Session, C, DNSCacheHitInfo]
	onDNSCacheMiss          *signal.Signal[Session, C, DNSCacheMissInfo]
	onRequestHeadersSent    *signal.Signal[Session, C, RequestHeadersSentInfo]

	factory ContextFactory[C]
}

// New creates a TraceConfig with the default context factory, which produces
// a fresh Namespace carrying the per-request seed.
func New() *TraceConfig[*Namespace] {
	return NewWithContext(func(requestCtx any) *Namespace {
		return NewNamespace(requestCtx)
	})
}

// NewWithContext creates a TraceConfig whose trace contexts are produced by
// the given factory.
func NewWithContext[C any](factory ContextFactory[C]) *TraceConfig[C] {
	return &TraceConfig[C]{
		onRequestStart: signal.New[Session, C, RequestStartInfo](
			"request_start"),
		onRequestChunkSent: signal.New[Session, C, RequestChunkSentInfo](
			"request_chunk_sent"),
		onResponseChunkReceived: signal.New[Session, C, ResponseChunkReceivedInfo](
			"response_chunk_received"),
		onRequestEnd: signal.New[Session, C, RequestEndInfo](
			"request_end"),
		onRequestException: signal.New[Session, C, RequestExceptionInfo](
			"request_exception"),
		onRequestRedirect: signal.New[Session, C, RequestRedirectInfo](
			"request_redirect"),
		onConnectionQueuedStart: signal.New[Session, C, ConnectionQueuedStartInfo](
			"connection_queued_start"),
		onConnectionQueuedEnd: signal.New[Session, C, ConnectionQueuedEndInfo](
			"connection_queued_end"),
		onConnectionCreateStart: signal.New[Session, C, ConnectionCreateStartInfo](
			"connection_create_start"),
		onConnectionCreateEnd: signal.New[Session, C, ConnectionCreateEndInfo](
			"connection_create_end"),
		onConnectionReuseconn: signal.New[Session, C, ConnectionReuseconnInfo](
			"connection_reuseconn"),
		onDNSResolveHostStart: signal.New[Session, C, DNSResolveHostStartInfo](
			"dns_resolvehost_start"),
		onDNSResolveHostEnd: signal.New[Session, C, DNSResolveHostEndInfo](
			"dns_resolvehost_end"),
		onDNSCacheHit: signal.New[Session, C, DNSCacheHitInfo](
			"dns_cache_hit"),
		onDNSCacheMiss: signal.New[Session, C, DNSCacheMissInfo](
			"dns_cache_miss"),
		onRequestHeadersSent: signal.New[Session, C, RequestHeadersSentInfo](
			"request_headers_sent"),
		factory: factory,
	}
}

// TraceContext invokes the context factory with the per-request seed and
// returns a new, independent context instance. It never caches.
func (tc *TraceConfig[C]) TraceContext(requestCtx any) C {
	return tc.factory(requestCtx)
}

// Freeze locks all sixteen signals. After Freeze, registration panics and
// dispatch becomes valid. Freezing twice is a no-op.
func (tc *TraceConfig[C]) Freeze() {
	tc.onRequestStart.Freeze()
	tc.onRequestChunkSent.Freeze()
	tc.onResponseChunkReceived.Freeze()
	tc.onRequestEnd.Freeze()
	tc.onRequestException.Freeze()
	tc.onRequestRedirect.Freeze()
	tc.onConnectionQueuedStart.Freeze()
	tc.onConnectionQueuedEnd.Freeze()
	tc.onConnectionCreateStart.Freeze()
	tc.onConnectionCreateEnd.Freeze()
	tc.onConnectionReuseconn.Freeze()
	tc.onDNSResolveHostStart.Freeze()
	tc.onDNSResolveHostEnd.Freeze()
	tc.onDNSCacheHit.Freeze()
	tc.onDNSCacheMiss.Freeze()
	tc.onRequestHeadersSent.Freeze()
}

// Frozen reports whether the configuration has been frozen.
func (tc *TraceConfig[C]) Frozen() bool {
	return tc.onRequestStart.Frozen()
}

// Trace binds a new per-request dispatcher to this configuration, creating a
// fresh trace context via the factory. It panics with a
// *signal.ConfigurationError if the configuration has not been frozen, since
// dispatching over a mutable listener set is a wiring error.
func (tc *TraceConfig[C]) Trace(sess Session, requestCtx any) Dispatcher {
	if !tc.Frozen() {
		panic(&signal.ConfigurationError{
			Signal: "trace_config",
			Op:     "create trace before freeze",
		})
	}

	return NewTrace(sess, tc, tc.TraceContext(requestCtx))
}

// OnRequestStart returns the request_start signal.
func (tc *TraceConfig[C]) OnRequestStart() *signal.Signal[Session, C, RequestStartInfo] {
	return tc.onRequestStart
}

// OnRequestChunkSent returns the request_chunk_sent signal.
func (tc *TraceConfig[C]) OnRequestChunkSent() *signal.Signal[Session, C, RequestChunkSentInfo] {
	return tc.onRequestChunkSent
}

// OnResponseChunkReceived returns the response_chunk_received signal.
func (tc *TraceConfig[C]) OnResponseChunkReceived() *signal.Signal[Session, C, ResponseChunkReceivedInfo] {
	return tc.onResponseChunkReceived
}

// OnRequestEnd returns the request_end signal.
func (tc *TraceConfig[C]) OnRequestEnd() *signal.Signal[Session, C, RequestEndInfo] {
	return tc.onRequestEnd
}

// OnRequestException returns the request_exception signal.
func (tc *TraceConfig[C]) OnRequestException() *signal.Signal[Session, C, RequestExceptionInfo] {
	return tc.onRequestException
}

// OnRequestRedirect returns the request_redirect signal.
func (tc *TraceConfig[C]) OnRequestRedirect() *signal.Signal[Session, C, RequestRedirectInfo] {
	return tc.onRequestRedirect
}

// OnConnectionQueuedStart returns the connection_queued_start signal.
func (tc *TraceConfig[C]) OnConnectionQueuedStart() *signal.Signal[Session, C, ConnectionQueuedStartInfo] {
	return tc.onConnectionQueuedStart
}

// OnConnectionQueuedEnd returns the connection_queued_end signal.
func (tc *TraceConfig[C]) OnConnectionQueuedEnd() *signal.Signal[Session, C, ConnectionQueuedEndInfo] {
	return tc.onConnectionQueuedEnd
}

// OnConnectionCreateStart returns the connection_create_start signal.
func (tc *TraceConfig[C]) OnConnectionCreateStart() *signal.Signal[Session, C, ConnectionCreateStartInfo] {
	return tc.onConnectionCreateStart
}

// OnConnectionCreateEnd returns the connection_create_end signal.
func (tc *TraceConfig[C]) OnConnectionCreateEnd() *signal.Signal[Session, C, ConnectionCreateEndInfo] {
	return tc.onConnectionCreateEnd
}

// OnConnectionReuseconn returns the connection_reuseconn signal.
func (tc *TraceConfig[C]) OnConnectionReuseconn() *signal.Signal[Session, C, ConnectionReuseconnInfo] {
	return tc.onConnectionReuseconn
}

// OnDNSResolveHostStart returns the dns_resolvehost_start signal.
func (tc *TraceConfig[C]) OnDNSResolveHostStart() *signal.Signal[Session, C, DNSResolveHostStartInfo] {
	return tc.onDNSResolveHostStart
}

// OnDNSResolveHostEnd returns the dns_resolvehost_end signal.
func (tc *TraceConfig[C]) OnDNSResolveHostEnd() *signal.Signal[Session, C, DNSResolveHostEndInfo] {
	return tc.onDNSResolveHostEnd
}

// OnDNSCacheHit returns the dns_cache_hit signal.
func (tc *TraceConfig[C]) OnDNSCacheHit() *signal.Signal[Session, C, DNSCacheHitInfo] {
	return tc.onDNSCacheHit
}

// OnDNSCacheMiss returns the dns_cache_miss signal.
func (tc *TraceConfig[C]) OnDNSCacheMiss() *signal.Signal[Session, C, DNSCacheMissInfo] {
	return tc.onDNSCacheMiss
}

// OnRequestHeadersSent returns the request_headers_sent signal.
func (tc *TraceConfig[C]) OnRequestHeadersSent() *signal.Signal[Session, C, RequestHeadersSentInfo] {
	return tc.onRequestHeadersSent
}
