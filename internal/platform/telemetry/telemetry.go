// Package telemetry provides in-process timers and request metrics with a
// Prometheus text exposition endpoint, built only on standard library
// constructs.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Histogram — Prometheus-style histogram with buckets
// ---------------------------------------------------------------------------

// histogram is a thread-safe histogram with configurable bucket boundaries.
// Bucket counts are non-cumulative in storage; cumulative counts are computed
// at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64 // one per boundary, non-cumulative
	count        int64
	sum          uint64 // stored as math.Float64bits for atomic add
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

// Count returns the total number of observations.
func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

// Sum returns the total sum of all observations.
func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	cum := make([]int64, len(raw))
	var running int64
	for i, c := range raw {
		running += c
		cum[i] = running
	}
	return cum
}

// atomicAddFloat64 performs an atomic add on a uint64 that stores a float64
// using CAS.
func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(newVal)) {
			return
		}
	}
}

// defaultDurationBuckets are the timer bucket boundaries in seconds.
var defaultDurationBuckets = []float64{
	0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry holds named timers and HTTP request metrics. It is safe for
// concurrent use and is meant to be shared for the life of the process.
type Registry struct {
	mu       sync.RWMutex
	timers   map[string]*Timer
	requests map[string]*histogram
	active   int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		timers:   make(map[string]*Timer),
		requests: make(map[string]*histogram),
	}
}

// Name joins metric name parts with dots, skipping empty parts.
func Name(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

// Timer returns the timer registered under name, creating it on first use.
func (r *Registry) Timer(name string) *Timer {
	r.mu.RLock()
	t, ok := r.timers[name]
	r.mu.RUnlock()
	if ok {
		return t
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.timers[name]; !ok {
		t = &Timer{name: name, h: newHistogram(defaultDurationBuckets)}
		r.timers[name] = t
	}
	return t
}

// Timers returns the names of all registered timers, sorted.
func (r *Registry) Timers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.timers))
	for n := range r.timers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Timer measures the duration of an operation.
type Timer struct {
	name string
	h    *histogram
}

// Context is one running measurement. Stop must be called exactly once,
// usually via defer.
type Context struct {
	t     *Timer
	start time.Time
	once  sync.Once
}

// Time starts a measurement.
func (t *Timer) Time() *Context {
	return &Context{t: t, start: time.Now()}
}

// Stop records the elapsed time and returns it. Calls after the first are
// no-ops that return zero.
func (c *Context) Stop() time.Duration {
	var d time.Duration
	c.once.Do(func() {
		d = time.Since(c.start)
		c.t.Update(d)
	})
	return d
}

// Update records a duration directly.
func (t *Timer) Update(d time.Duration) {
	t.h.Observe(d.Seconds())
}

// Count returns how many durations were recorded.
func (t *Timer) Count() int64 {
	return t.h.Count()
}

// Name returns the timer's registered name.
func (t *Timer) Name() string {
	return t.name
}

// ---------------------------------------------------------------------------
// MetricsMiddleware
// ---------------------------------------------------------------------------

func requestKey(method, route, status string) string {
	return method + "|" + route + "|" + status
}

// MetricsMiddleware returns an Echo middleware that records HTTP request
// durations by method, route pattern and status.
func (r *Registry) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&r.active, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&r.active, -1)
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			key := requestKey(c.Request().Method, route, fmt.Sprintf("%d", status))

			r.mu.RLock()
			h, ok := r.requests[key]
			r.mu.RUnlock()
			if !ok {
				r.mu.Lock()
				if h, ok = r.requests[key]; !ok {
					h = newHistogram(defaultDurationBuckets)
					r.requests[key] = h
				}
				r.mu.Unlock()
			}
			h.Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// PrometheusHandler
// ---------------------------------------------------------------------------

// PrometheusHandler returns an Echo handler that serves all timers and
// request metrics in Prometheus text exposition format.
func (r *Registry) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, r.Exposition())
	}
}

// Exposition renders the registry in Prometheus text format.
func (r *Registry) Exposition() string {
	var b strings.Builder

	r.mu.RLock()
	timers := make(map[string]*Timer, len(r.timers))
	for k, v := range r.timers {
		timers[k] = v
	}
	requests := make(map[string]*histogram, len(r.requests))
	for k, v := range r.requests {
		requests[k] = v
	}
	r.mu.RUnlock()

	b.WriteString("# HELP timer_duration_seconds Duration of timed operations in seconds.\n")
	b.WriteString("# TYPE timer_duration_seconds histogram\n")
	for _, name := range sortedKeys(timers) {
		writeSingleHistogram(&b, "timer_duration_seconds", fmt.Sprintf("name=%q", name), timers[name].h)
	}
	b.WriteByte('\n')

	b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
	b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
	for _, key := range sortedKeys(requests) {
		parts := strings.SplitN(key, "|", 3)
		if len(parts) != 3 {
			continue
		}
		labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
		writeSingleHistogram(&b, "http_server_request_duration_seconds", labels, requests[key])
	}
	b.WriteByte('\n')

	b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
	b.WriteString("# TYPE http_server_active_requests gauge\n")
	fmt.Fprintf(&b, "http_server_active_requests %d\n", atomic.LoadInt64(&r.active))

	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeSingleHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	total := h.Count()

	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}
