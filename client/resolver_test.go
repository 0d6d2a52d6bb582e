package client

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqtrace/reqtrace/tracing"
)

var _ = Describe("CachingResolver", func() {
	var (
		rec     *eventRecorder
		a       *attempt
		lookups int
	)

	newResolver := func(ttl time.Duration) *cachingResolver {
		return newCachingResolver(ttl,
			func(ctx context.Context, host string) ([]string, error) {
				lookups++
				return []string{"127.0.0.1"}, nil
			})
	}

	BeforeEach(func() {
		cfg, r := newRecordingConfig()
		rec = r
		s := NewSession(WithTraceConfig(cfg))
		a = newAttempt(s, nil, func(error) {})
		lookups = 0
	})

	It("should fire miss and resolve events on a cold lookup", func() {
		resolver := newResolver(time.Minute)

		addrs, err := resolver.resolve(context.Background(), a, "example.com")

		Expect(err).ToNot(HaveOccurred())
		Expect(addrs).To(Equal([]string{"127.0.0.1"}))
		Expect(rec.all()).To(Equal([]string{
			"dns_cache_miss",
			"dns_resolvehost_start",
			"dns_resolvehost_end",
		}))
		Expect(lookups).To(Equal(1))
	})

	It("should fire exactly one hit on a warm lookup", func() {
		resolver := newResolver(time.Minute)

		_, err := resolver.resolve(context.Background(), a, "example.com")
		Expect(err).ToNot(HaveOccurred())
		_, err = resolver.resolve(context.Background(), a, "example.com")
		Expect(err).ToNot(HaveOccurred())

		Expect(rec.all()).To(Equal([]string{
			"dns_cache_miss",
			"dns_resolvehost_start",
			"dns_resolvehost_end",
			"dns_cache_hit",
		}))
		Expect(lookups).To(Equal(1))
	})

	It("should never fire hit and miss for the same lookup", func() {
		resolver := newResolver(time.Minute)

		for i := 0; i < 5; i++ {
			_, err := resolver.resolve(
				context.Background(), a, "example.com")
			Expect(err).ToNot(HaveOccurred())
		}

		hits := rec.count("dns_cache_hit")
		misses := rec.count("dns_cache_miss")
		Expect(hits + misses).To(Equal(5))
		Expect(misses).To(Equal(1))
	})

	It("should treat an expired entry as a miss", func() {
		resolver := newResolver(time.Nanosecond)

		_, err := resolver.resolve(context.Background(), a, "example.com")
		Expect(err).ToNot(HaveOccurred())
		time.Sleep(time.Millisecond)
		_, err = resolver.resolve(context.Background(), a, "example.com")
		Expect(err).ToNot(HaveOccurred())

		Expect(rec.count("dns_cache_miss")).To(Equal(2))
		Expect(rec.count("dns_cache_hit")).To(Equal(0))
		Expect(lookups).To(Equal(2))
	})

	It("should always miss with the cache disabled", func() {
		resolver := newResolver(0)

		for i := 0; i < 3; i++ {
			_, err := resolver.resolve(
				context.Background(), a, "example.com")
			Expect(err).ToNot(HaveOccurred())
		}

		Expect(rec.count("dns_cache_miss")).To(Equal(3))
		Expect(rec.count("dns_cache_hit")).To(Equal(0))
		Expect(lookups).To(Equal(3))
	})

	It("should keep hosts in separate cache entries", func() {
		resolver := newResolver(time.Minute)

		_, err := resolver.resolve(context.Background(), a, "a.example.com")
		Expect(err).ToNot(HaveOccurred())
		_, err = resolver.resolve(context.Background(), a, "b.example.com")
		Expect(err).ToNot(HaveOccurred())

		Expect(rec.count("dns_cache_miss")).To(Equal(2))
		Expect(lookups).To(Equal(2))
	})

	It("should not fire resolvehost_end when the lookup fails", func() {
		failing := newCachingResolver(time.Minute,
			func(ctx context.Context, host string) ([]string, error) {
				return nil, errors.New("no such host")
			})

		_, err := failing.resolve(context.Background(), a, "example.com")

		Expect(err).To(HaveOccurred())
		Expect(rec.all()).To(Equal([]string{
			"dns_cache_miss",
			"dns_resolvehost_start",
		}))
	})

	It("should resolve silently without an attempt", func() {
		resolver := newResolver(time.Minute)

		addrs, err := resolver.resolve(context.Background(), nil, "example.com")

		Expect(err).ToNot(HaveOccurred())
		Expect(addrs).To(Equal([]string{"127.0.0.1"}))
		Expect(rec.all()).To(BeEmpty())
	})

	It("should propagate a DNS listener error", func() {
		boom := errors.New("dns listener broke")

		failCfg := tracing.New()
		failCfg.OnDNSCacheMiss().Append(func(
			ctx context.Context, s tracing.Session, ns *tracing.Namespace,
			p tracing.DNSCacheMissInfo,
		) error {
			return boom
		})

		failSess := NewSession(WithTraceConfig(failCfg))
		failAttempt := newAttempt(failSess, nil, func(error) {})

		resolver := newResolver(time.Minute)
		_, err := resolver.resolve(
			context.Background(), failAttempt, "example.com")

		Expect(err).To(BeIdenticalTo(boom))
		Expect(lookups).To(BeZero())
	})
})
