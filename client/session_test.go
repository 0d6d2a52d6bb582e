package client

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqtrace/reqtrace/signal"
	"github.com/reqtrace/reqtrace/tracing"
	"github.com/reqtrace/reqtrace/web"
)

var _ = Describe("Session", func() {
	var (
		server  *httptest.Server
		baseURL string
		cfg     *tracing.TraceConfig[*tracing.Namespace]
		rec     *eventRecorder
		sess    *Session
	)

	BeforeEach(func() {
		server = httptest.NewServer(web.NewRouter())
		baseURL = localhostURL(server.URL)

		cfg, rec = newRecordingConfig()
		sess = NewSession(WithTraceConfig(cfg))
		sess.resolver = newCachingResolver(time.Minute, loopbackLookup)
	})

	AfterEach(func() {
		sess.Close()
		server.Close()
	})

	readAndClose := func(ctx context.Context, path string) {
		resp, err := sess.Get(ctx, baseURL+path)
		Expect(err).ToNot(HaveOccurred())
		_, err = io.ReadAll(resp.Body)
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.Body.Close()).To(Succeed())
	}

	It("should fire the lifecycle events of a plain GET in order", func() {
		readAndClose(context.Background(), "/ok")

		events := rec.all()
		Expect(events[0]).To(Equal("request_start"))

		Expect(rec.count("request_start")).To(Equal(1))
		Expect(rec.count("request_end")).To(Equal(1))
		Expect(rec.count("request_exception")).To(Equal(0))
		Expect(rec.count("dns_cache_miss")).To(Equal(1))
		Expect(rec.count("dns_cache_hit")).To(Equal(0))
		Expect(rec.count("dns_resolvehost_start")).To(Equal(1))
		Expect(rec.count("dns_resolvehost_end")).To(Equal(1))

		Expect(rec.indexOf("connection_queued_start", 0)).
			To(BeNumerically("<", rec.indexOf("connection_queued_end", 0)))
		Expect(rec.indexOf("dns_cache_miss", 0)).
			To(BeNumerically("<", rec.indexOf("dns_resolvehost_start", 0)))
		Expect(rec.indexOf("dns_resolvehost_start", 0)).
			To(BeNumerically("<", rec.indexOf("dns_resolvehost_end", 0)))
		Expect(rec.indexOf("connection_create_start", 0)).
			To(BeNumerically("<", rec.indexOf("connection_create_end", 0)))
		Expect(rec.indexOf("request_headers_sent", 0)).
			To(BeNumerically("<", rec.indexOf("request_end", 0)))
	})

	It("should reuse the connection and hit the DNS cache on the second request",
		func() {
			readAndClose(context.Background(), "/ok")
			first := len(rec.all())

			readAndClose(context.Background(), "/ok")
			second := rec.all()[first:]

			Expect(second).To(ContainElement("dns_cache_hit"))
			Expect(second).ToNot(ContainElement("dns_cache_miss"))
			Expect(second).ToNot(ContainElement("dns_resolvehost_start"))
			Expect(second).To(ContainElement("connection_reuseconn"))
			Expect(second).ToNot(ContainElement("connection_create_start"))
		})

	It("should fire request_redirect once per hop", func() {
		readAndClose(context.Background(), "/redirect/2")

		Expect(rec.count("request_redirect")).To(Equal(2))
		Expect(rec.count("request_start")).To(Equal(3))
		Expect(rec.count("request_end")).To(Equal(1))
		Expect(rec.count("request_exception")).To(Equal(0))

		Expect(rec.indexOf("request_redirect", 1)).
			To(BeNumerically("<", rec.indexOf("request_end", 0)))
	})

	It("should span one trace context across redirects", func() {
		var contexts []*tracing.Namespace
		spanCfg := tracing.New()
		spanCfg.OnRequestStart().Append(func(
			ctx context.Context, s tracing.Session, ns *tracing.Namespace,
			p tracing.RequestStartInfo,
		) error {
			contexts = append(contexts, ns)
			return nil
		})

		spanSess := NewSession(WithTraceConfig(spanCfg))
		spanSess.resolver = newCachingResolver(time.Minute, loopbackLookup)
		defer spanSess.Close()

		resp, err := spanSess.Get(context.Background(), baseURL+"/redirect/1")
		Expect(err).ToNot(HaveOccurred())
		_, _ = io.ReadAll(resp.Body)
		resp.Body.Close()

		Expect(contexts).To(HaveLen(2))
		Expect(contexts[1]).To(BeIdenticalTo(contexts[0]))
	})

	It("should deliver every received body byte through chunk events", func() {
		var received []byte
		chunkCfg := tracing.New()
		chunkCfg.OnResponseChunkReceived().Append(func(
			ctx context.Context, s tracing.Session, ns *tracing.Namespace,
			p tracing.ResponseChunkReceivedInfo,
		) error {
			received = append(received, p.Chunk...)
			return nil
		})

		chunkSess := NewSession(WithTraceConfig(chunkCfg))
		chunkSess.resolver = newCachingResolver(time.Minute, loopbackLookup)
		defer chunkSess.Close()

		resp, err := chunkSess.Get(context.Background(), baseURL+"/chunked/3")
		Expect(err).ToNot(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()

		Expect(string(body)).To(Equal("chunk-0\nchunk-1\nchunk-2\n"))
		Expect(string(received)).To(Equal(string(body)))
	})

	It("should deliver every sent body byte through chunk events", func() {
		var sent []byte
		chunkCfg := tracing.New()
		chunkCfg.OnRequestChunkSent().Append(func(
			ctx context.Context, s tracing.Session, ns *tracing.Namespace,
			p tracing.RequestChunkSentInfo,
		) error {
			sent = append(sent, p.Chunk...)
			return nil
		})

		chunkSess := NewSession(WithTraceConfig(chunkCfg))
		chunkSess.resolver = newCachingResolver(time.Minute, loopbackLookup)
		defer chunkSess.Close()

		payload := "hello from the request body"
		resp, err := chunkSess.Post(context.Background(), baseURL+"/echo",
			WithBodyString(payload))
		Expect(err).ToNot(HaveOccurred())
		echoed, err := io.ReadAll(resp.Body)
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()

		Expect(string(echoed)).To(Equal(payload))
		Expect(string(sent)).To(Equal(payload))
	})

	It("should fire request_exception when the exchange fails", func() {
		_, err := sess.Get(context.Background(), baseURL+"/fail")

		Expect(err).To(HaveOccurred())
		Expect(rec.count("request_exception")).To(Equal(1))
		Expect(rec.count("request_end")).To(Equal(0))
	})

	It("should fail with ErrTooManyRedirects past the redirect limit", func() {
		limited := NewSession(
			WithTraceConfig(cfg),
			WithMaxRedirects(1),
		)
		limited.resolver = newCachingResolver(time.Minute, loopbackLookup)
		defer limited.Close()

		_, err := limited.Get(context.Background(), baseURL+"/redirect/5")

		Expect(err).To(MatchError(ErrTooManyRedirects))
		Expect(rec.count("request_exception")).To(Equal(1))
	})

	It("should fail the request when a request_start listener fails", func() {
		boom := errors.New("start listener broke")
		var hits atomic.Int32

		failCfg := tracing.New()
		failCfg.OnRequestStart().Append(func(
			ctx context.Context, s tracing.Session, ns *tracing.Namespace,
			p tracing.RequestStartInfo,
		) error {
			return boom
		})
		failCfg.OnConnectionQueuedStart().Append(func(
			ctx context.Context, s tracing.Session, ns *tracing.Namespace,
			p tracing.ConnectionQueuedStartInfo,
		) error {
			hits.Add(1)
			return nil
		})

		failSess := NewSession(WithTraceConfig(failCfg))
		failSess.resolver = newCachingResolver(time.Minute, loopbackLookup)
		defer failSess.Close()

		_, err := failSess.Get(context.Background(), baseURL+"/ok")

		Expect(err).To(BeIdenticalTo(boom))
		Expect(hits.Load()).To(BeZero())
	})

	It("should surface a response chunk listener error from body reads",
		func() {
			boom := errors.New("chunk listener broke")

			failCfg := tracing.New()
			failCfg.OnResponseChunkReceived().Append(func(
				ctx context.Context, s tracing.Session,
				ns *tracing.Namespace,
				p tracing.ResponseChunkReceivedInfo,
			) error {
				return boom
			})

			failSess := NewSession(WithTraceConfig(failCfg))
			failSess.resolver = newCachingResolver(time.Minute, loopbackLookup)
			defer failSess.Close()

			resp, err := failSess.Get(context.Background(), baseURL+"/ok")
			Expect(err).ToNot(HaveOccurred())
			defer resp.Body.Close()

			_, err = io.ReadAll(resp.Body)
			Expect(err).To(BeIdenticalTo(boom))
		})

	It("should hand listeners the owning session", func() {
		var gotSess tracing.Session
		sessCfg := tracing.New()
		sessCfg.OnRequestStart().Append(func(
			ctx context.Context, s tracing.Session, ns *tracing.Namespace,
			p tracing.RequestStartInfo,
		) error {
			gotSess = s
			return nil
		})

		named := NewSession(
			WithName("named-session"),
			WithTraceConfig(sessCfg),
		)
		named.resolver = newCachingResolver(time.Minute, loopbackLookup)
		defer named.Close()

		readAndCloseWith := func(s *Session) {
			resp, err := s.Get(context.Background(), baseURL+"/ok")
			Expect(err).ToNot(HaveOccurred())
			_, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
		}
		readAndCloseWith(named)

		Expect(gotSess).To(BeIdenticalTo(named))
		Expect(gotSess.Name()).To(Equal("named-session"))
	})

	It("should pass the trace seed to the context factory", func() {
		var seed any
		seedCfg := tracing.New()
		seedCfg.OnRequestStart().Append(func(
			ctx context.Context, s tracing.Session, ns *tracing.Namespace,
			p tracing.RequestStartInfo,
		) error {
			seed = ns.RequestCtx
			return nil
		})

		seedSess := NewSession(WithTraceConfig(seedCfg))
		seedSess.resolver = newCachingResolver(time.Minute, loopbackLookup)
		defer seedSess.Close()

		resp, err := seedSess.Get(context.Background(), baseURL+"/ok",
			WithTraceSeed("req-42"))
		Expect(err).ToNot(HaveOccurred())
		_, _ = io.ReadAll(resp.Body)
		resp.Body.Close()

		Expect(seed).To(Equal("req-42"))
	})

	It("should reject trace configs after the first request", func() {
		readAndClose(context.Background(), "/ok")

		late := tracing.New()
		Expect(func() {
			sess.AddTraceConfig(late)
		}).To(PanicWith(
			BeAssignableToTypeOf(&signal.ConfigurationError{})))
	})
})
