package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Login metrics
	LoginsTotal *prometheus.CounterVec

	// Session store metrics
	SessionOperationsTotal *prometheus.CounterVec

	// IdP metadata registry metrics
	MetadataRefreshTotal *prometheus.CounterVec
	RegisteredIdPs       prometheus.Gauge
	SigningCertDaysLeft  prometheus.Gauge

	// Assertion archive metrics
	AssertionArchiveTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingresso_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingresso_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingresso_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingresso_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Login metrics
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingresso_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),

		// Session store metrics
		SessionOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingresso_session_operations_total",
				Help: "Total number of session store operations",
			},
			[]string{"operation", "outcome"},
		),

		// IdP metadata registry metrics
		MetadataRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingresso_idp_metadata_refresh_total",
				Help: "Total number of IdP metadata refresh attempts",
			},
			[]string{"outcome"},
		),
		RegisteredIdPs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingresso_registered_idps",
				Help: "Number of IdPs in the current metadata snapshot",
			},
		),
		SigningCertDaysLeft: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingresso_signing_cert_days_left",
				Help: "Days until the SAML signing certificate expires",
			},
		),

		// Assertion archive metrics
		AssertionArchiveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingresso_assertion_archive_total",
				Help: "Total number of assertion archive attempts",
			},
			[]string{"outcome"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.LoginsTotal,
		m.SessionOperationsTotal,
		m.MetadataRefreshTotal,
		m.RegisteredIdPs,
		m.SigningCertDaysLeft,
		m.AssertionArchiveTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
