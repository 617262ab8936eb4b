package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestName(t *testing.T) {
	if got := Name("CoverageProvider", "query", "bene_by_id"); got != "CoverageProvider.query.bene_by_id" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := Name("a", "", "b"); got != "a.b" {
		t.Fatalf("empty parts should be skipped, got %q", got)
	}
}

func TestRegistry_TimerIsShared(t *testing.T) {
	r := NewRegistry()
	a := r.Timer("x")
	b := r.Timer("x")
	if a != b {
		t.Fatal("expected the same timer for the same name")
	}
}

func TestTimer_StopRecordsOnce(t *testing.T) {
	r := NewRegistry()
	ctx := r.Timer("op").Time()
	time.Sleep(time.Millisecond)
	if d := ctx.Stop(); d <= 0 {
		t.Fatalf("expected positive duration, got %v", d)
	}
	if d := ctx.Stop(); d != 0 {
		t.Fatalf("second Stop should be a no-op, got %v", d)
	}
	if n := r.Timer("op").Count(); n != 1 {
		t.Fatalf("expected 1 observation, got %d", n)
	}
}

func TestTimer_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Timer("op").Time().Stop()
		}()
	}
	wg.Wait()
	if n := r.Timer("op").Count(); n != 50 {
		t.Fatalf("expected 50 observations, got %d", n)
	}
}

func TestHistogram_Buckets(t *testing.T) {
	h := newHistogram([]float64{1, 2, 3})
	h.Observe(0.5)
	h.Observe(1.5)
	h.Observe(2.5)
	h.Observe(10)

	cum := h.cumulativeBuckets()
	want := []int64{1, 2, 3}
	for i := range want {
		if cum[i] != want[i] {
			t.Fatalf("bucket %d: expected %d, got %d", i, want[i], cum[i])
		}
	}
	if h.Count() != 4 {
		t.Fatalf("expected count 4, got %d", h.Count())
	}
	if h.Sum() != 14.5 {
		t.Fatalf("expected sum 14.5, got %g", h.Sum())
	}
}

func TestPrometheusHandler(t *testing.T) {
	r := NewRegistry()
	r.Timer("CoverageProvider.query.bene_by_id").Update(2 * time.Millisecond)

	e := echo.New()
	e.Use(r.MetricsMiddleware())
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/metrics", r.PrometheusHandler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`timer_duration_seconds_count{name="CoverageProvider.query.bene_by_id"} 1`,
		`http_server_request_duration_seconds_count{method="GET",route="/ping",status_code="200"} 1`,
		"# TYPE http_server_active_requests gauge",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q:\n%s", want, body)
		}
	}
}
