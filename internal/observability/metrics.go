package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sms_dispatch"

// Metrics stores Prometheus collectors used by the API, dispatch engine and
// queue consumer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	dispatchUnitsTotal  *prometheus.CounterVec
	dispatchDuration    *prometheus.HistogramVec
	sentUnitsTotal      prometheus.Counter
	configReloadsTotal  *prometheus.CounterVec
	providerConfigured  prometheus.Gauge
	poolInflight        prometheus.Gauge
	usageReportsDropped prometheus.Counter
	queueMessagesTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchUnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_units_total",
				Help:      "Dispatch units by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Caller-visible dispatch duration in seconds grouped by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 13),
			},
			[]string{"kind"},
		),
		sentUnitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sent_units_total",
				Help:      "Message segments accepted by the provider on the tenant batch path.",
			},
		),
		configReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Provider configuration reloads by result.",
			},
			[]string{"result"},
		),
		providerConfigured: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_configured",
				Help:      "1 when an active provider handle is installed.",
			},
		),
		poolInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_inflight",
				Help:      "Dispatch units currently executing on the worker pool.",
			},
		),
		usageReportsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_reports_dropped_total",
				Help:      "Usage reports dropped because the report buffer was full.",
			},
		),
		queueMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_messages_total",
				Help:      "Dispatch queue messages by settlement.",
			},
			[]string{"settlement"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchUnitsTotal,
		m.dispatchDuration,
		m.sentUnitsTotal,
		m.configReloadsTotal,
		m.providerConfigured,
		m.poolInflight,
		m.usageReportsDropped,
		m.queueMessagesTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request counters. statusOf maps handler errors to the
// status the error handler will write; nil falls back to fiber error codes.
func (m *Metrics) HTTPMiddleware(statusOf func(error) int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err, statusOf), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatch(kind string, outcome string) {
	if m == nil {
		return
	}
	m.dispatchUnitsTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObserveDispatchDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.dispatchDuration.WithLabelValues(normalizeLabel(kind)).Observe(seconds)
}

func (m *Metrics) AddSentUnits(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.sentUnitsTotal.Add(float64(units))
}

func (m *Metrics) IncConfigReload(result string) {
	if m == nil {
		return
	}
	m.configReloadsTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) SetProviderConfigured(configured bool) {
	if m == nil {
		return
	}
	if configured {
		m.providerConfigured.Set(1)
		return
	}
	m.providerConfigured.Set(0)
}

func (m *Metrics) IncPoolInFlight() {
	if m == nil {
		return
	}
	m.poolInflight.Inc()
}

func (m *Metrics) DecPoolInFlight() {
	if m == nil {
		return
	}
	m.poolInflight.Dec()
}

func (m *Metrics) IncUsageReportDropped() {
	if m == nil {
		return
	}
	m.usageReportsDropped.Inc()
}

func (m *Metrics) IncQueueMessage(settlement string) {
	if m == nil {
		return
	}
	m.queueMessagesTotal.WithLabelValues(normalizeLabel(settlement)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error, statusOf func(error) int) int {
	if err != nil {
		if statusOf != nil {
			return statusOf(err)
		}
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
