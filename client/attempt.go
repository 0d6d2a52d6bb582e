package client

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync"

	"github.com/reqtrace/reqtrace/tracing"
)

type attemptCtxKey struct{}

// withAttempt stores the attempt in ctx so the transport's DialContext can
// reach the dispatchers of the request it is dialing for.
func withAttempt(ctx context.Context, a *attempt) context.Context {
	return context.WithValue(ctx, attemptCtxKey{}, a)
}

func attemptFromContext(ctx context.Context) *attempt {
	a, _ := ctx.Value(attemptCtxKey{}).(*attempt)
	return a
}

// An attempt carries the dispatch state of one logical request: the bound
// dispatchers (one per trace configuration, sharing their contexts across
// redirects), the current target, and the first listener error.
//
// net/http runs connection setup and body writes on their own goroutines, so
// events reach the attempt from several goroutines. A single mutex
// serializes all dispatch of one request, which keeps the per-request trace
// context single-threaded for listeners, and makes "first error wins"
// well-defined.
type attempt struct {
	sess   *Session
	cancel context.CancelCauseFunc

	mu      sync.Mutex
	traces  []tracing.Dispatcher
	failed  error
	method  string
	url     *url.URL
	headers http.Header
}

func newAttempt(
	s *Session, traceSeed any, cancel context.CancelCauseFunc,
) *attempt {
	a := &attempt{sess: s, cancel: cancel}
	for _, cfg := range s.configs {
		a.traces = append(a.traces, cfg.Trace(s, traceSeed))
	}
	return a
}

// setTarget records the method/URL/headers of the current attempt for events
// fired from transport callbacks.
func (a *attempt) setTarget(method string, u *url.URL, headers http.Header) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.method = method
	a.url = u
	a.headers = headers
}

func (a *attempt) target() (string, *url.URL, http.Header) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.method, a.url, a.headers
}

// fire dispatches one event through every bound dispatcher, in registration
// order of the configurations. The first listener error is recorded, the
// request context is cancelled so in-flight I/O stops promptly, and the
// error is returned. Once an attempt has failed, further events are dropped.
func (a *attempt) fire(f func(d tracing.Dispatcher) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failed != nil {
		return a.failed
	}

	return a.dispatchLocked(f)
}

// fireException dispatches request_exception. Unlike fire, it runs even
// after a recorded listener failure: the exception event is how that failure
// becomes visible to the remaining configurations.
func (a *attempt) fireException(f func(d tracing.Dispatcher) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, d := range a.traces {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// emit is the callback-side variant of fire: errors are recorded rather than
// returned, because httptrace callbacks have nowhere to return them.
func (a *attempt) emit(f func(d tracing.Dispatcher) error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failed != nil {
		return
	}

	_ = a.dispatchLocked(f)
}

func (a *attempt) dispatchLocked(f func(d tracing.Dispatcher) error) error {
	for _, d := range a.traces {
		if err := f(d); err != nil {
			a.failed = err
			a.cancel(err)
			return err
		}
	}
	return nil
}

// preferRecorded substitutes the first recorded listener error for a
// transport error caused by it, so the listener error surfaces from Do
// unchanged instead of wrapped in a cancellation.
func (a *attempt) preferRecorded(err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failed != nil {
		return a.failed
	}
	return err
}

// withClientTrace installs the httptrace hooks that map transport progress
// to connection and header events:
//
//	GetConn              -> connection_queued_start
//	GotConn              -> connection_queued_end (+ connection_reuseconn
//	                        when the connection comes from the idle pool)
//	ConnectStart         -> connection_create_start
//	ConnectDone          -> connection_create_end
//	WroteHeaders         -> request_headers_sent
//
// DNS events are not mapped here; the session resolver fires them, including
// the cache hit/miss pair httptrace cannot see.
func (a *attempt) withClientTrace(ctx context.Context) context.Context {
	trace := &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			a.emit(func(d tracing.Dispatcher) error {
				return d.SendConnectionQueuedStart(ctx)
			})
		},
		GotConn: func(info httptrace.GotConnInfo) {
			a.emit(func(d tracing.Dispatcher) error {
				return d.SendConnectionQueuedEnd(ctx)
			})
			if info.Reused {
				a.emit(func(d tracing.Dispatcher) error {
					return d.SendConnectionReuseconn(ctx)
				})
			}
		},
		ConnectStart: func(network, addr string) {
			a.emit(func(d tracing.Dispatcher) error {
				return d.SendConnectionCreateStart(ctx)
			})
		},
		ConnectDone: func(network, addr string, err error) {
			a.emit(func(d tracing.Dispatcher) error {
				return d.SendConnectionCreateEnd(ctx)
			})
		},
		WroteHeaders: func() {
			method, u, headers := a.target()
			a.emit(func(d tracing.Dispatcher) error {
				return d.SendRequestHeadersSent(ctx, method, u, headers)
			})
		},
	}

	return httptrace.WithClientTrace(ctx, trace)
}
