// Package console renders trace events as human-readable lines on a writer.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tebeka/atexit"

	"github.com/reqtrace/reqtrace/tracing"
)

// startedAtKey is where the printer keeps the request start time inside the
// trace context, so later events can show the elapsed time.
const startedAtKey = "console_started_at"

// A Printer subscribes to every signal of a trace configuration and writes
// one line per event, stamped with the time elapsed since the request
// started. Output is buffered and flushed on process exit.
type Printer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewPrinter creates a Printer writing to w and registers its flush with the
// process exit hooks.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{w: bufio.NewWriter(w)}

	atexit.Register(func() {
		p.Flush()
	})

	return p
}

// Flush writes out any buffered lines.
func (p *Printer) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.w.Flush(); err != nil {
		panic(err)
	}
}

// Install registers one printing listener on each signal of cfg. It must be
// called before the configuration is frozen.
func (p *Printer) Install(cfg *tracing.TraceConfig[*tracing.Namespace]) {
	cfg.OnRequestStart().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.RequestStartInfo,
	) error {
		ns.Set(startedAtKey, time.Now())
		p.line(ns, "request_start", "%s %s", info.Method, info.URL)
		return nil
	})

	cfg.OnRequestChunkSent().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.RequestChunkSentInfo,
	) error {
		p.line(ns, "request_chunk_sent", "%d bytes", len(info.Chunk))
		return nil
	})

	cfg.OnResponseChunkReceived().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.ResponseChunkReceivedInfo,
	) error {
		p.line(ns, "response_chunk_received", "%d bytes", len(info.Chunk))
		return nil
	})

	cfg.OnRequestEnd().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.RequestEndInfo,
	) error {
		status := 0
		if info.Response != nil {
			status = info.Response.StatusCode
		}
		p.line(ns, "request_end", "status %d", status)
		return nil
	})

	cfg.OnRequestException().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.RequestExceptionInfo,
	) error {
		p.line(ns, "request_exception", "%v", info.Err)
		return nil
	})

	cfg.OnRequestRedirect().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.RequestRedirectInfo,
	) error {
		location := ""
		if info.Response != nil {
			location = info.Response.Header.Get("Location")
		}
		p.line(ns, "request_redirect", "-> %s", location)
		return nil
	})

	cfg.OnConnectionQueuedStart().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.ConnectionQueuedStartInfo,
	) error {
		p.line(ns, "connection_queued_start", "")
		return nil
	})

	cfg.OnConnectionQueuedEnd().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.ConnectionQueuedEndInfo,
	) error {
		p.line(ns, "connection_queued_end", "")
		return nil
	})

	cfg.OnConnectionCreateStart().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.ConnectionCreateStartInfo,
	) error {
		p.line(ns, "connection_create_start", "")
		return nil
	})

	cfg.OnConnectionCreateEnd().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.ConnectionCreateEndInfo,
	) error {
		p.line(ns, "connection_create_end", "")
		return nil
	})

	cfg.OnConnectionReuseconn().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.ConnectionReuseconnInfo,
	) error {
		p.line(ns, "connection_reuseconn", "")
		return nil
	})

	cfg.OnDNSResolveHostStart().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.DNSResolveHostStartInfo,
	) error {
		p.line(ns, "dns_resolvehost_start", "%s", info.Host)
		return nil
	})

	cfg.OnDNSResolveHostEnd().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.DNSResolveHostEndInfo,
	) error {
		p.line(ns, "dns_resolvehost_end", "%s", info.Host)
		return nil
	})

	cfg.OnDNSCacheHit().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.DNSCacheHitInfo,
	) error {
		p.line(ns, "dns_cache_hit", "%s", info.Host)
		return nil
	})

	cfg.OnDNSCacheMiss().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.DNSCacheMissInfo,
	) error {
		p.line(ns, "dns_cache_miss", "%s", info.Host)
		return nil
	})

	cfg.OnRequestHeadersSent().Append(func(
		ctx context.Context, s tracing.Session, ns *tracing.Namespace,
		info tracing.RequestHeadersSentInfo,
	) error {
		p.line(ns, "request_headers_sent", "%d headers", len(info.Headers))
		return nil
	})
}

func (p *Printer) line(
	ns *tracing.Namespace, event, format string, args ...any,
) {
	elapsed := time.Duration(0)
	if v, ok := ns.Get(startedAtKey); ok {
		elapsed = time.Since(v.(time.Time))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%12s  %-24s %s\n",
		fmt.Sprintf("+%.3fms", float64(elapsed.Microseconds())/1000),
		event,
		fmt.Sprintf(format, args...),
	)
}
