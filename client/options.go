package client

import (
	"net/http"
)

// requestOptions collects per-request settings.
type requestOptions struct {
	headers   http.Header
	body      []byte
	traceSeed any
}

// A RequestOption configures one request issued through a Session.
type RequestOption func(*requestOptions)

// WithHeader adds a header value to the request.
func WithHeader(key, value string) RequestOption {
	return func(ro *requestOptions) {
		if ro.headers == nil {
			ro.headers = http.Header{}
		}
		ro.headers.Add(key, value)
	}
}

// WithHeaders merges all values of h into the request headers.
func WithHeaders(h http.Header) RequestOption {
	return func(ro *requestOptions) {
		if ro.headers == nil {
			ro.headers = http.Header{}
		}
		for k, vs := range h {
			for _, v := range vs {
				ro.headers.Add(k, v)
			}
		}
	}
}

// WithBody sets the request body. The body is kept as bytes so 307/308
// redirects can replay it.
func WithBody(body []byte) RequestOption {
	return func(ro *requestOptions) { ro.body = body }
}

// WithBodyString sets the request body from a string.
func WithBodyString(body string) RequestOption {
	return func(ro *requestOptions) { ro.body = []byte(body) }
}

// WithTraceSeed sets the per-request seed passed to every trace context
// factory, visible to listeners as the context's request seed.
func WithTraceSeed(seed any) RequestOption {
	return func(ro *requestOptions) { ro.traceSeed = seed }
}

func newRequestOptions(opts []RequestOption) *requestOptions {
	ro := &requestOptions{}
	for _, opt := range opts {
		opt(ro)
	}
	if ro.headers == nil {
		ro.headers = http.Header{}
	}
	return ro
}
