package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RateLimitConfig holds rate limiting configuration. A non-positive
// RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: now,
	}
}

// take consumes a token. When none is left it returns the whole seconds
// until one will be.
func (b *tokenBucket) take(now time.Time) (ok bool, retryAfter int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, int((1-b.tokens)/b.refillRate) + 1
}

// sweepInterval is how often idle buckets are looked for.
const sweepInterval = time.Minute

type rateLimiter struct {
	cfg       RateLimitConfig
	now       func() time.Time
	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

func newRateLimiter(cfg RateLimitConfig, now func() time.Time) *rateLimiter {
	if cfg.BurstSize < 1 {
		cfg.BurstSize = 1
	}
	return &rateLimiter{cfg: cfg, now: now, buckets: make(map[string]*tokenBucket), lastSweep: now()}
}

func (l *rateLimiter) bucket(key string, now time.Time) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = newTokenBucket(l.cfg.RequestsPerSecond, l.cfg.BurstSize, now)
		l.buckets[key] = b
	}
	return b
}

// sweep drops buckets that have refilled completely. Such a bucket is
// indistinguishable from a new one. l.mu must be held.
func (l *rateLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		b.mu.Lock()
		full := b.tokens+now.Sub(b.lastRefill).Seconds()*b.refillRate >= b.maxTokens
		b.mu.Unlock()
		if full {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *rateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// rateLimitKey is the client DN when LoggingContext found one, the peer
// address otherwise. Forwarding headers are client-controlled and ignored.
func rateLimitKey(c echo.Context) string {
	if dn := ClientDNFrom(c); dn != "" {
		return "dn:" + dn
	}
	return "ip:" + echo.ExtractIPDirect()(c.Request())
}

// RateLimit throttles each client certificate (or address) to cfg. It must
// run after LoggingContext.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return newRateLimiter(cfg, time.Now).middleware()
}

func (l *rateLimiter) middleware() echo.MiddlewareFunc {
	limit := strconv.FormatFloat(l.cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateLimitKey(c)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			now := l.now()
			if ok, retryAfter := l.bucket(key, now).take(now); !ok {
				zerolog.Ctx(c.Request().Context()).Warn().Ctx(c.Request().Context()).
					Str("key", key).Msg("rate limit exceeded")
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
