package observability

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the dispatch and HTTP flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	successfulPushes    *prometheus.CounterVec
	failedPushes        *prometheus.CounterVec
	devicesTotal        prometheus.Counter
	notificationsTotal  *prometheus.CounterVec
	jitterSeconds       prometheus.Histogram

	// Unix seconds of the last successful push, exported as an age gauge.
	lastSuccessUnix atomic.Int64
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pushgw",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pushgw",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		successfulPushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pushgw",
				Name:      "successful_pushes",
				Help:      "Total number of per-device pushes accepted by the upstream provider.",
			},
			[]string{"device_type"},
		),
		failedPushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pushgw",
				Name:      "failed_pushes",
				Help:      "Total number of per-device pushes rejected after exhausting retries.",
			},
			[]string{"device_type"},
		),
		devicesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pushgw",
				Name:      "devices_total",
				Help:      "Total number of devices seen across all inbound notifications.",
			},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pushgw",
				Name:      "notifications_total",
				Help:      "Total number of notifications with at least one successful push, by type.",
			},
			[]string{"type"},
		),
		jitterSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pushgw",
				Name:      "jitter_seconds",
				Help:      "Jitter delay applied before dispatching a notification, in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
		),
	}

	lastSuccessAge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "pushgw",
			Name:      "last_successful_push_age_seconds",
			Help:      "Seconds since the last successful push, or 0 if none happened yet.",
		},
		func() float64 {
			last := m.lastSuccessUnix.Load()
			if last == 0 {
				return 0
			}
			return time.Since(time.Unix(last, 0)).Seconds()
		},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.successfulPushes,
		m.failedPushes,
		m.devicesTotal,
		m.notificationsTotal,
		m.jitterSeconds,
		lastSuccessAge,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncSuccessfulPush(deviceType string) {
	if m == nil {
		return
	}
	m.successfulPushes.WithLabelValues(normalizeLabel(deviceType)).Inc()
	m.lastSuccessUnix.Store(time.Now().Unix())
}

func (m *Metrics) IncFailedPush(deviceType string) {
	if m == nil {
		return
	}
	m.failedPushes.WithLabelValues(normalizeLabel(deviceType)).Inc()
}

func (m *Metrics) AddDevices(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.devicesTotal.Add(float64(count))
}

func (m *Metrics) IncNotification(notificationType string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(normalizeLabel(notificationType)).Inc()
}

func (m *Metrics) ObserveJitter(delay time.Duration) {
	if m == nil {
		return
	}
	seconds := delay.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.jitterSeconds.Observe(seconds)
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

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
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
