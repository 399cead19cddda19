package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics groups the collectors of the auth service.  A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Auth flow metrics
	authOperationsTotal   *prometheus.CounterVec
	authOperationDuration *prometheus.HistogramVec

	// Rate limiting metrics
	rateLimitRejectionsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New builds the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		authOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Total number of auth operations by outcome",
			},
			[]string{"operation", "result"}, // register/login/logout/whoami, success/rejected/error
		),
		authOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "auth_operation_duration_seconds",
				Help: "Auth operation duration in seconds, including failure delays",
				// PBKDF2 and the failed-login delay push this well past DefBuckets
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 1.5, 2.0, 5.0},
			},
			[]string{"operation"},
		),
		rateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_ratelimit_rejections_total",
				Help: "Total number of auth attempts rejected by rate limiting",
			},
			[]string{"scope"}, // register_ip, login_ip, login_email
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_server_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_server_requests_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status_code"},
		),
	}
	reg.MustRegister(
		m.authOperationsTotal,
		m.authOperationDuration,
		m.rateLimitRejectionsTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// RecordAuthOperation records the outcome and latency of an auth flow.
func (m *Metrics) RecordAuthOperation(operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.authOperationsTotal.WithLabelValues(operation, result).Inc()
	m.authOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordRateLimitRejection records an attempt refused by a limiter.
func (m *Metrics) RecordRateLimitRejection(scope string) {
	if m == nil {
		return
	}
	m.rateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

// HTTPMiddleware records HTTP metrics
func (m *Metrics) HTTPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()

			// Process request; let the error handler write the status first.
			// The error is still returned so outer middleware can log it.
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			m.httpRequestsTotal.WithLabelValues(c.Request().Method, route, status).Inc()
			m.httpRequestDuration.WithLabelValues(c.Request().Method, route, status).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
