package tracing

import (
	"context"
	"net/http"
	"net/url"
)

// A Trace binds one request to {the owning session, a frozen TraceConfig, a
// trace context instance}. It lives for the duration of that request and is
// discarded afterwards. The context instance is owned by the Trace and is the
// only state listeners may use to correlate events within the request.
//
// Each Send method is a pure dispatch adapter: it builds the payload and
// emits it on the matching signal, performing no I/O of its own.
type Trace[C any] struct {
	sess Session
	cfg  *TraceConfig[C]
	tcc  C
}

var _ Dispatcher = (*Trace[*Namespace])(nil)

// NewTrace binds a trace to a session, a configuration, and a trace context
// instance. Most callers go through TraceConfig.Trace, which also invokes
// the context factory.
func NewTrace[C any](sess Session, cfg *TraceConfig[C], tcc C) *Trace[C] {
	return &Trace[C]{sess: sess, cfg: cfg, tcc: tcc}
}

// Session returns the owning session.
func (t *Trace[C]) Session() Session {
	return t.sess
}

// Context returns the trace context instance bound to this trace.
func (t *Trace[C]) Context() C {
	return t.tcc
}

// SendRequestStart fires the request_start event.
func (t *Trace[C]) SendRequestStart(
	ctx context.Context,
	method string, url *url.URL, headers http.Header,
) error {
	return t.cfg.onRequestStart.Emit(ctx, t.sess, t.tcc,
		RequestStartInfo{Method: method, URL: url, Headers: headers})
}

// SendRequestChunkSent fires the request_chunk_sent event.
func (t *Trace[C]) SendRequestChunkSent(
	ctx context.Context,
	method string, url *url.URL, chunk []byte,
) error {
	return t.cfg.onRequestChunkSent.Emit(ctx, t.sess, t.tcc,
		RequestChunkSentInfo{Method: method, URL: url, Chunk: chunk})
}

// SendResponseChunkReceived fires the response_chunk_received event.
func (t *Trace[C]) SendResponseChunkReceived(
	ctx context.Context,
	method string, url *url.URL, chunk []byte,
) error {
	return t.cfg.onResponseChunkReceived.Emit(ctx, t.sess, t.tcc,
		ResponseChunkReceivedInfo{Method: method, URL: url, Chunk: chunk})
}

// SendRequestEnd fires the request_end event.
func (t *Trace[C]) SendRequestEnd(
	ctx context.Context,
	method string, url *url.URL, headers http.Header,
	response *http.Response,
) error {
	return t.cfg.onRequestEnd.Emit(ctx, t.sess, t.tcc,
		RequestEndInfo{
			Method:   method,
			URL:      url,
			Headers:  headers,
			Response: response,
		})
}

// SendRequestException fires the request_exception event.
func (t *Trace[C]) SendRequestException(
	ctx context.Context,
	method string, url *url.URL, headers http.Header,
	reqErr error,
) error {
	return t.cfg.onRequestException.Emit(ctx, t.sess, t.tcc,
		RequestExceptionInfo{
			Method:  method,
			URL:     url,
			Headers: headers,
			Err:     reqErr,
		})
}

// SendRequestRedirect fires the request_redirect event.
func (t *Trace[C]) SendRequestRedirect(
	ctx context.Context,
	method string, url *url.URL, headers http.Header,
	response *http.Response,
) error {
	return t.cfg.onRequestRedirect.Emit(ctx, t.sess, t.tcc,
		RequestRedirectInfo{
			Method:   method,
			URL:      url,
			Headers:  headers,
			Response: response,
		})
}

// SendConnectionQueuedStart fires the connection_queued_start event.
func (t *Trace[C]) SendConnectionQueuedStart(ctx context.Context) error {
	return t.cfg.onConnectionQueuedStart.Emit(ctx, t.sess, t.tcc,
		ConnectionQueuedStartInfo{})
}

// SendConnectionQueuedEnd fires the connection_queued_end event.
func (t *Trace[C]) SendConnectionQueuedEnd(ctx context.Context) error {
	return t.cfg.onConnectionQueuedEnd.Emit(ctx, t.sess, t.tcc,
		ConnectionQueuedEndInfo{})
}

// SendConnectionCreateStart fires the connection_create_start event.
func (t *Trace[C]) SendConnectionCreateStart(ctx context.Context) error {
	return t.cfg.onConnectionCreateStart.Emit(ctx, t.sess, t.tcc,
		ConnectionCreateStartInfo{})
}

// SendConnectionCreateEnd fires the connection_create_end event.
func (t *Trace[C]) SendConnectionCreateEnd(ctx context.Context) error {
	return t.cfg.onConnectionCreateEnd.Emit(ctx, t.sess, t.tcc,
		ConnectionCreateEndInfo{})
}

// SendConnectionReuseconn fires the connection_reuseconn event.
func (t *Trace[C]) SendConnectionReuseconn(ctx context.Context) error {
	return t.cfg.onConnectionReuseconn.Emit(ctx, t.sess, t.tcc,
		ConnectionReuseconnInfo{})
}

// SendDNSResolveHostStart fires the dns_resolvehost_start event.
func (t *Trace[C]) SendDNSResolveHostStart(
	ctx context.Context, host string,
) error {
	return t.cfg.onDNSResolveHostStart.Emit(ctx, t.sess, t.tcc,
		DNSResolveHostStartInfo{Host: host})
}

// SendDNSResolveHostEnd fires the dns_resolvehost_end event.
func (t *Trace[C]) SendDNSResolveHostEnd(
	ctx context.Context, host string,
) error {
	return t.cfg.onDNSResolveHostEnd.Emit(ctx, t.sess, t.tcc,
		DNSResolveHostEndInfo{Host: host})
}

// SendDNSCacheHit fires the dns_cache_hit event.
func (t *Trace[C]) SendDNSCacheHit(ctx context.Context, host string) error {
	return t.cfg.onDNSCacheHit.Emit(ctx, t.sess, t.tcc,
		DNSCacheHitInfo{Host: host})
}

// SendDNSCacheMiss fires the dns_cache_miss event.
func (t *Trace[C]) SendDNSCacheMiss(ctx context.Context, host string) error {
	return t.cfg.onDNSCacheMiss.Emit(ctx, t.sess, t.tcc,
		DNSCacheMissInfo{Host: host})
}

// SendRequestHeadersSent fires the request_headers_sent event.
func (t *Trace[C]) SendRequestHeadersSent(
	ctx context.Context,
	method string, url *url.URL, headers http.Header,
) error {
	return t.cfg.onRequestHeadersSent.Emit(ctx, t.sess, t.tcc,
		RequestHeadersSentInfo{Method: method, URL: url, Headers: headers})
}
