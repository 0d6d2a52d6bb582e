package tracing

import (
	"net/http"
	"net/url"
)

// The *Info types below are the event payloads, one per lifecycle event.
// Each is created fresh for a single dispatch, passed to listeners by value,
// and never retained by the dispatcher. Listeners must treat them as
// read-only records; referenced values (headers, response) belong to the
// request pipeline.

// RequestStartInfo is the payload of the request_start event, fired once the
// method, URL, and headers of a request are known, before any I/O.
type RequestStartInfo struct {
	Method  string
	URL     *url.URL
	Headers http.Header
}

// RequestChunkSentInfo is the payload of the request_chunk_sent event, fired
// once per outgoing body chunk.
type RequestChunkSentInfo struct {
	Method string
	URL    *url.URL
	Chunk  []byte
}

// ResponseChunkReceivedInfo is the payload of the response_chunk_received
// event, fired once per incoming body chunk.
type ResponseChunkReceivedInfo struct {
	Method string
	URL    *url.URL
	Chunk  []byte
}

// RequestEndInfo is the payload of the request_end event, fired when a
// request attempt completes successfully.
type RequestEndInfo struct {
	Method   string
	URL      *url.URL
	Headers  http.Header
	Response *http.Response
}

// RequestExceptionInfo is the payload of the request_exception event, fired
// when a request attempt fails.
type RequestExceptionInfo struct {
	Method  string
	URL     *url.URL
	Headers http.Header
	Err     error
}

// RequestRedirectInfo is the payload of the request_redirect event, fired
// when a response triggers a new attempt.
type RequestRedirectInfo struct {
	Method   string
	URL      *url.URL
	Headers  http.Header
	Response *http.Response
}

// ConnectionQueuedStartInfo is the payload of the connection_queued_start
// event, fired when the request starts waiting for a pooled connection slot.
type ConnectionQueuedStartInfo struct{}

// ConnectionQueuedEndInfo is the payload of the connection_queued_end event,
// fired when the wait for a pooled connection slot ends.
type ConnectionQueuedEndInfo struct{}

// ConnectionCreateStartInfo is the payload of the connection_create_start
// event, fired before a new connection is established.
type ConnectionCreateStartInfo struct{}

// ConnectionCreateEndInfo is the payload of the connection_create_end event,
// fired after a new connection is established.
type ConnectionCreateEndInfo struct{}

// ConnectionReuseconnInfo is the payload of the connection_reuseconn event,
// fired when an existing pooled connection is reused instead of created.
type ConnectionReuseconnInfo struct{}

// DNSResolveHostStartInfo is the payload of the dns_resolvehost_start event,
// fired before a resolver lookup.
type DNSResolveHostStartInfo struct {
	Host string
}

// DNSResolveHostEndInfo is the payload of the dns_resolvehost_end event,
// fired after a resolver lookup.
type DNSResolveHostEndInfo struct {
	Host string
}

// DNSCacheHitInfo is the payload of the dns_cache_hit event. For a single
// lookup against a DNS cache, exactly one of dns_cache_hit and
// dns_cache_miss fires.
type DNSCacheHitInfo struct {
	Host string
}

// DNSCacheMissInfo is the payload of the dns_cache_miss event.
type DNSCacheMissInfo struct {
	Host string
}

// RequestHeadersSentInfo is the payload of the request_headers_sent event,
// fired after the request headers are fully sent.
type RequestHeadersSentInfo struct {
	Method  string
	URL     *url.URL
	Headers http.Header
}
