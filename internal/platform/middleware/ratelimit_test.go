package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func serveLimited(t *testing.T, h echo.HandlerFunc, cn string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	c, rec := newContext("/fhir/Coverage?beneficiary=1")
	if cn != "" {
		c.Set(ClientCertificatesAttribute, chain(cn))
	}
	return rec, LoggingContext(nil)(h)(c)
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	h := newRateLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}, clock.now).middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		rec, err := serveLimited(t, h, "client")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	h := newRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}, clock.now).middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 2; i++ {
		if _, err := serveLimited(t, h, "client"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}

	rec, err := serveLimited(t, h, "client")
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}

	clock.t = clock.t.Add(time.Second)
	if _, err := serveLimited(t, h, "client"); err != nil {
		t.Errorf("expected a refilled token after one second, got %v", err)
	}
}

func TestRateLimit_KeyedByClientDN(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	h := newRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, clock.now).middleware()(func(c echo.Context) error {
		return nil
	})

	if _, err := serveLimited(t, h, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := serveLimited(t, h, "bob"); err != nil {
		t.Errorf("expected a separate bucket per client DN, got %v", err)
	}
	if _, err := serveLimited(t, h, "alice"); err == nil {
		t.Error("expected alice to be throttled")
	}
	if _, err := serveLimited(t, h, ""); err != nil {
		t.Errorf("expected anonymous clients to use the address bucket, got %v", err)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	calls := 0
	h := RateLimit(RateLimitConfig{})(func(c echo.Context) error {
		calls++
		return nil
	})
	for i := 0; i < 50; i++ {
		if _, err := serveLimited(t, h, "client"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 50 {
		t.Errorf("expected every request through, got %d", calls)
	}
}

func TestRateLimit_IgnoresForwardedFor(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	limiter := newRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, clock.now)
	h := LoggingContext(nil)(limiter.middleware()(func(c echo.Context) error { return nil }))

	admitted := 0
	for i := 0; i < 100; i++ {
		c, _ := newContext("/fhir/Coverage?beneficiary=1")
		c.Request().RemoteAddr = "203.0.113.7:4711"
		c.Request().Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("10.0.%d.%d", i/256, i%256))
		c.Request().Header.Set(echo.HeaderXRealIP, fmt.Sprintf("10.1.0.%d", i%256))
		if h(c) == nil {
			admitted++
		}
	}
	if admitted != 1 {
		t.Errorf("expected one request through for a single peer, got %d", admitted)
	}
	if limiter.size() != 1 {
		t.Errorf("expected one bucket, got %d", limiter.size())
	}
}

func TestRateLimit_SweepsRefilledBuckets(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	limiter := newRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}, clock.now)
	h := limiter.middleware()(func(c echo.Context) error { return nil })

	for i := 0; i < 20; i++ {
		if _, err := serveLimited(t, h, fmt.Sprintf("client-%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if limiter.size() != 20 {
		t.Fatalf("expected 20 buckets, got %d", limiter.size())
	}

	// client-0 drains its bucket just before the sweep; it must survive.
	clock.t = clock.t.Add(sweepInterval - time.Millisecond)
	for i := 0; i < 2; i++ {
		_, _ = serveLimited(t, h, "client-0")
	}

	clock.t = clock.t.Add(time.Millisecond)
	if _, err := serveLimited(t, h, "client-new"); err != nil {
		t.Fatal(err)
	}
	if limiter.size() != 2 {
		t.Errorf("expected client-0 and client-new to remain, got %d buckets", limiter.size())
	}
	if _, err := serveLimited(t, h, "client-0"); err == nil {
		t.Error("expected client-0 to still be throttled after the sweep")
	}
}
