package client

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/reqtrace/reqtrace/tracing"
)

// A lookupFunc resolves a hostname to addresses. The default asks
// net.DefaultResolver; tests inject their own.
type lookupFunc func(ctx context.Context, host string) ([]string, error)

type dnsEntry struct {
	addrs     []string
	expiresAt time.Time
}

// cachingResolver is a TTL cache in front of a resolver lookup. For every
// lookup against the cache exactly one of dns_cache_hit / dns_cache_miss
// fires on the attempt; a miss is followed by dns_resolvehost_start and, on
// success, dns_resolvehost_end around the real lookup.
//
// Concurrent misses for the same host may both resolve; the last result
// wins. That only costs a duplicate lookup, never a wrong event pair.
type cachingResolver struct {
	ttl    time.Duration
	lookup lookupFunc

	mu      sync.Mutex
	entries map[string]dnsEntry
}

func newCachingResolver(ttl time.Duration, lookup lookupFunc) *cachingResolver {
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		}
	}

	return &cachingResolver{
		ttl:     ttl,
		lookup:  lookup,
		entries: make(map[string]dnsEntry),
	}
}

// resolve returns the addresses for host, firing the DNS events of the
// attempt. A nil attempt resolves silently (dial outside a traced request).
func (r *cachingResolver) resolve(
	ctx context.Context, a *attempt, host string,
) ([]string, error) {
	if addrs, ok := r.cached(host); ok {
		if a != nil {
			if err := a.fire(func(d tracing.Dispatcher) error {
				return d.SendDNSCacheHit(ctx, host)
			}); err != nil {
				return nil, err
			}
		}
		return addrs, nil
	}

	if a != nil {
		if err := a.fire(func(d tracing.Dispatcher) error {
			return d.SendDNSCacheMiss(ctx, host)
		}); err != nil {
			return nil, err
		}
		if err := a.fire(func(d tracing.Dispatcher) error {
			return d.SendDNSResolveHostStart(ctx, host)
		}); err != nil {
			return nil, err
		}
	}

	addrs, err := r.lookup(ctx, host)
	if err != nil {
		return nil, err
	}

	if a != nil {
		if err := a.fire(func(d tracing.Dispatcher) error {
			return d.SendDNSResolveHostEnd(ctx, host)
		}); err != nil {
			return nil, err
		}
	}

	r.store(host, addrs)
	return addrs, nil
}

func (r *cachingResolver) cached(host string) ([]string, bool) {
	if r.ttl <= 0 {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[host]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(r.entries, host)
		return nil, false
	}
	return entry.addrs, true
}

func (r *cachingResolver) store(host string, addrs []string) {
	if r.ttl <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[host] = dnsEntry{
		addrs:     addrs,
		expiresAt: time.Now().Add(r.ttl),
	}
}
