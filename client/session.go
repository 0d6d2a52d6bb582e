// Package client provides an HTTP session instrumented with the tracing
// package. It is the reference pipeline for the notification fabric: per
// request it binds one dispatcher per registered trace configuration and
// fires the lifecycle events in pipeline order — request start, DNS,
// connection acquisition, header and body transfer, redirects, and exactly
// one of request end or request exception.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/reqtrace/reqtrace/signal"
	"github.com/reqtrace/reqtrace/tracing"
)

// ErrTooManyRedirects is returned by Do when a redirect chain exceeds the
// session's redirect limit.
var ErrTooManyRedirects = errors.New("too many redirects")

const (
	defaultMaxRedirects = 10
	defaultDNSCacheTTL  = 10 * time.Second
)

// A Session owns the transport, the DNS cache, and the frozen trace
// configurations shared by all requests it issues. Sessions are safe for
// concurrent use once the first request has been issued; trace
// configurations can only be registered before that point.
type Session struct {
	name         string
	transport    *http.Transport
	resolver     *cachingResolver
	configs      []tracing.Instrument
	maxRedirects int
	dialer       *net.Dialer

	started atomic.Bool
}

// An Option configures a Session at construction time.
type Option func(*Session)

// WithName sets the session name visible to listeners.
func WithName(name string) Option {
	return func(s *Session) { s.name = name }
}

// WithTraceConfig registers trace configurations with the session. Each is
// frozen when the session is built.
func WithTraceConfig(cfgs ...tracing.Instrument) Option {
	return func(s *Session) { s.configs = append(s.configs, cfgs...) }
}

// WithMaxRedirects sets how many redirects Do follows before failing with
// ErrTooManyRedirects.
func WithMaxRedirects(n int) Option {
	return func(s *Session) { s.maxRedirects = n }
}

// WithDNSCacheTTL sets how long resolved addresses are cached. A
// non-positive TTL disables the cache, so every lookup fires
// dns_cache_miss followed by the resolve events.
func WithDNSCacheTTL(ttl time.Duration) Option {
	return func(s *Session) { s.resolver = newCachingResolver(ttl, nil) }
}

// WithTransport replaces the session transport. The session takes ownership
// and installs its own DialContext so DNS events keep firing.
func WithTransport(t *http.Transport) Option {
	return func(s *Session) { s.transport = t }
}

// NewSession builds a Session and freezes every registered trace
// configuration, ending their registration phase.
func NewSession(opts ...Option) *Session {
	s := &Session{
		name:         "session-" + xid.New().String(),
		maxRedirects: defaultMaxRedirects,
		dialer:       &net.Dialer{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.resolver == nil {
		s.resolver = newCachingResolver(defaultDNSCacheTTL, nil)
	}

	if s.transport == nil {
		s.transport = &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	s.transport.DialContext = s.dialContext

	for _, cfg := range s.configs {
		cfg.Freeze()
	}

	return s
}

// Name returns the session name. It implements tracing.Session.
func (s *Session) Name() string {
	return s.name
}

// AddTraceConfig registers and freezes one more trace configuration. It
// panics with a *signal.ConfigurationError once the session has issued a
// request: a listener set changing under in-flight requests is the same
// wiring error as appending to a frozen signal.
func (s *Session) AddTraceConfig(cfg tracing.Instrument) {
	if s.started.Load() {
		panic(&signal.ConfigurationError{
			Signal: "session",
			Op:     "add trace config after first request",
		})
	}

	cfg.Freeze()
	s.configs = append(s.configs, cfg)
}

// Close releases idle connections held by the transport.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}

// Get issues a GET request. See Do.
func (s *Session) Get(
	ctx context.Context, rawURL string, opts ...RequestOption,
) (*http.Response, error) {
	return s.Do(ctx, http.MethodGet, rawURL, opts...)
}

// Post issues a POST request. See Do.
func (s *Session) Post(
	ctx context.Context, rawURL string, opts ...RequestOption,
) (*http.Response, error) {
	return s.Do(ctx, http.MethodPost, rawURL, opts...)
}

// Do issues one logical request, following redirects up to the session
// limit, and fires the trace events of every registered configuration at
// each lifecycle moment. The per-request trace contexts are created once and
// span all redirected attempts of the logical request.
//
// Listener errors are not best-effort: the first error returned by any
// listener aborts the request and surfaces from Do unchanged. On failure
// paths the request_exception event fires before Do returns; on success the
// caller receives a response whose body is instrumented, so
// response_chunk_received keeps firing while the body is read.
func (s *Session) Do(
	ctx context.Context, method, rawURL string, opts ...RequestOption,
) (*http.Response, error) {
	s.started.Store(true)

	ro := newRequestOptions(opts)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	a := newAttempt(s, ro.traceSeed, cancel)

	resp, err := s.roundTrips(ctx, a, method, u, ro)
	if err != nil {
		cancel(nil)
		return nil, err
	}

	// The cancel func stays alive with the body: cancelling here would kill
	// the connection before the caller reads the response.
	resp.Body = &bodyCloser{ReadCloser: resp.Body, onClose: func() {
		cancel(nil)
	}}
	return resp, nil
}

// roundTrips runs the redirect loop of one logical request.
func (s *Session) roundTrips(
	ctx context.Context,
	a *attempt,
	method string,
	u *url.URL,
	ro *requestOptions,
) (*http.Response, error) {
	headers := ro.headers
	body := ro.body

	for redirects := 0; ; redirects++ {
		a.setTarget(method, u, headers)

		if err := a.fire(func(d tracing.Dispatcher) error {
			return d.SendRequestStart(ctx, method, u, headers)
		}); err != nil {
			return nil, s.failAttempt(ctx, a, err)
		}

		resp, err := s.roundTripOnce(ctx, a, method, u, headers, body)
		if err != nil {
			return nil, s.failAttempt(ctx, a, a.preferRecorded(err))
		}

		if !isRedirect(resp) {
			if err := a.fire(func(d tracing.Dispatcher) error {
				return d.SendRequestEnd(ctx, method, u, headers, resp)
			}); err != nil {
				resp.Body.Close()
				return nil, err
			}

			resp.Body = newChunkReceivedBody(ctx, a, resp.Body)
			return resp, nil
		}

		loc, locErr := resp.Location()
		if locErr != nil {
			// Redirect status without a usable Location terminates the
			// chain as a plain response.
			if err := a.fire(func(d tracing.Dispatcher) error {
				return d.SendRequestEnd(ctx, method, u, headers, resp)
			}); err != nil {
				resp.Body.Close()
				return nil, err
			}

			resp.Body = newChunkReceivedBody(ctx, a, resp.Body)
			return resp, nil
		}

		if err := a.fire(func(d tracing.Dispatcher) error {
			return d.SendRequestRedirect(ctx, method, u, headers, resp)
		}); err != nil {
			resp.Body.Close()
			return nil, err
		}
		drainBody(resp)

		if redirects >= s.maxRedirects {
			err := fmt.Errorf("%w: stopped after %d redirects",
				ErrTooManyRedirects, s.maxRedirects)
			return nil, s.failAttempt(ctx, a, err)
		}

		method, body = redirectedMethod(method, resp.StatusCode, body)
		u = loc
	}
}

// roundTripOnce performs a single HTTP exchange with the connection,
// header, and body-chunk events wired through httptrace.
func (s *Session) roundTripOnce(
	ctx context.Context,
	a *attempt,
	method string,
	u *url.URL,
	headers http.Header,
	body []byte,
) (*http.Response, error) {
	reqCtx := withAttempt(ctx, a)
	reqCtx = a.withClientTrace(reqCtx)

	var bodyReader *chunkSentReader
	if body != nil {
		bodyReader = newChunkSentReader(ctx, a, bytes.NewReader(body))
	}

	req, err := http.NewRequestWithContext(reqCtx, method, u.String(),
		noNilReader(bodyReader))
	if err != nil {
		return nil, err
	}
	if headers != nil {
		req.Header = headers.Clone()
	}
	if body != nil {
		req.ContentLength = int64(len(body))
	}

	return s.transport.RoundTrip(req)
}

// failAttempt fires request_exception for a failed attempt and returns the
// error Do should surface. A failing exception listener takes precedence;
// otherwise the original error comes back unchanged. The event is dispatched
// on an uncancellable context: the failure being reported may itself have
// cancelled the request context.
func (s *Session) failAttempt(
	ctx context.Context, a *attempt, reqErr error,
) error {
	ctx = context.WithoutCancel(ctx)

	method, u, headers := a.target()
	if err := a.fireException(func(d tracing.Dispatcher) error {
		return d.SendRequestException(ctx, method, u, headers, reqErr)
	}); err != nil {
		return err
	}

	return reqErr
}

// dialContext resolves the host through the session's caching resolver,
// firing the DNS events of the attempt carried by ctx, then dials the
// resolved addresses in order. IP literals skip resolution and fire no DNS
// events.
func (s *Session) dialContext(
	ctx context.Context, network, addr string,
) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	addrs := []string{addr}
	if net.ParseIP(host) == nil {
		a := attemptFromContext(ctx)

		hosts, err := s.resolver.resolve(ctx, a, host)
		if err != nil {
			return nil, err
		}

		addrs = addrs[:0]
		for _, h := range hosts {
			addrs = append(addrs, net.JoinHostPort(h, port))
		}
	}

	var firstErr error
	for _, target := range addrs {
		conn, err := s.dialer.DialContext(ctx, network, target)
		if err == nil {
			return conn, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = fmt.Errorf("no addresses for host %s", host)
	}
	return nil, firstErr
}

func isRedirect(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

// redirectedMethod applies the usual method rewrite: 301/302/303 turn
// non-HEAD requests into bodyless GETs, 307/308 keep method and body.
func redirectedMethod(
	method string, status int, body []byte,
) (string, []byte) {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther:
		if method != http.MethodHead {
			return http.MethodGet, nil
		}
	}
	return method, body
}

func drainBody(resp *http.Response) {
	const maxDrain = 64 << 10
	buf := make([]byte, 4096)
	var total int
	for total < maxDrain {
		n, err := resp.Body.Read(buf)
		total += n
		if err != nil {
			break
		}
	}
	resp.Body.Close()
}
