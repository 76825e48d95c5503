package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestProvider_DomainCounters(t *testing.T) {
	p := NewProvider()

	p.AllocationCommitted("ICU", true)
	p.AllocationCommitted("ICU", false)
	p.ReallocationApplied()
	p.ShortageDetected("CRITICAL")
	p.SideEffectFailed("audit")
	p.UtilizationObserved("ICU", 96)

	if got := testutil.ToFloat64(p.allocations.WithLabelValues("ICU")); got != 2 {
		t.Errorf("expected 2 ICU allocations, got %v", got)
	}
	if got := testutil.ToFloat64(p.substitutions); got != 1 {
		t.Errorf("expected 1 substitution, got %v", got)
	}
	if got := testutil.ToFloat64(p.reallocations); got != 1 {
		t.Errorf("expected 1 reallocation, got %v", got)
	}
	if got := testutil.ToFloat64(p.shortages.WithLabelValues("CRITICAL")); got != 1 {
		t.Errorf("expected 1 critical shortage, got %v", got)
	}
	if got := testutil.ToFloat64(p.sideEffectFailure.WithLabelValues("audit")); got != 1 {
		t.Errorf("expected 1 audit failure, got %v", got)
	}
	if got := testutil.ToFloat64(p.utilization.WithLabelValues("ICU")); got != 96 {
		t.Errorf("expected utilization 96, got %v", got)
	}
}

func TestProvider_NilSafe(t *testing.T) {
	var p *Provider
	p.AllocationCommitted("ICU", true)
	p.ReallocationApplied()
	p.ShortageDetected("HIGH")
	p.SideEffectFailed("notification")
	p.UtilizationObserved("ICU", 10)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := p.MetricsMiddleware()(func(c echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProvider_MiddlewareAndHandler(t *testing.T) {
	p := NewProvider()
	p.Registry().MustRegister(NewDBPoolCollector(func() (int32, int32, int32) { return 10, 7, 3 }))

	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/api/v1/resources/utilization/:managerID", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", p.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/resources/utilization/M-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`hospitalops_http_request_duration_seconds_count{method="GET",route="/api/v1/resources/utilization/:managerID",status="200"} 1`,
		`hospitalops_db_pool_connections{state="idle"} 7`,
		`hospitalops_http_active_requests`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
