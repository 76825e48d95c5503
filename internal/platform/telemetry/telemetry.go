// Package telemetry exposes Prometheus metrics for the HTTP surface and for
// the capacity engine.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hospitalops"

// Provider owns a private registry so tests can create as many as they like.
// All recording methods are safe to call on a nil *Provider.
type Provider struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	allocations       *prometheus.CounterVec
	reallocations     prometheus.Counter
	substitutions     prometheus.Counter
	shortages         *prometheus.CounterVec
	sideEffectFailure *prometheus.CounterVec
	utilization       *prometheus.GaugeVec
}

func NewProvider() *Provider {
	p := &Provider{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Requests currently being served.",
		}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Committed allocations by department.",
		}, []string{"department"}),
		reallocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reallocations_total",
			Help:      "Applied allocation updates.",
		}),
		substitutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staff_substitutions_total",
			Help:      "Allocations that replaced out-of-department staff with backups.",
		}),
		shortages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortages_detected_total",
			Help:      "Shortage reports produced, by severity.",
		}, []string{"severity"}),
		sideEffectFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Audit or notification writes that failed after a commit.",
		}, []string{"kind"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "department_utilization_percent",
			Help:      "Last computed bed utilization per department.",
		}, []string{"department"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.requestDuration,
		p.activeRequests,
		p.allocations,
		p.reallocations,
		p.substitutions,
		p.shortages,
		p.sideEffectFailure,
		p.utilization,
	)
	return p
}

// Registry exposes the underlying registry for extra collectors.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// MetricsMiddleware records latency and in-flight requests.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p == nil {
				return next(c)
			}
			p.activeRequests.Inc()
			defer p.activeRequests.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			p.requestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

func (p *Provider) AllocationCommitted(department string, substituted bool) {
	if p == nil {
		return
	}
	p.allocations.WithLabelValues(department).Inc()
	if substituted {
		p.substitutions.Inc()
	}
}

func (p *Provider) ReallocationApplied() {
	if p == nil {
		return
	}
	p.reallocations.Inc()
}

func (p *Provider) ShortageDetected(severity string) {
	if p == nil {
		return
	}
	p.shortages.WithLabelValues(severity).Inc()
}

// SideEffectFailed counts a failed audit or notification write. kind is
// "audit" or "notification".
func (p *Provider) SideEffectFailed(kind string) {
	if p == nil {
		return
	}
	p.sideEffectFailure.WithLabelValues(kind).Inc()
}

func (p *Provider) UtilizationObserved(department string, rate float64) {
	if p == nil {
		return
	}
	p.utilization.WithLabelValues(department).Set(rate)
}

// DBPoolCollector publishes connection pool gauges on every scrape.
type DBPoolCollector struct {
	stats func() (total, idle, acquired int32)
	desc  *prometheus.Desc
}

func NewDBPoolCollector(stats func() (total, idle, acquired int32)) *DBPoolCollector {
	return &DBPoolCollector{
		stats: stats,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_connections"),
			"Database pool connections by state.",
			[]string{"state"}, nil,
		),
	}
}

func (c *DBPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *DBPoolCollector) Collect(ch chan<- prometheus.Metric) {
	total, idle, acquired := c.stats()
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(total), "total")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(idle), "idle")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(acquired), "acquired")
}

