package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRateLimitRequests    = "rate_limit_requests_total"
	MetricRateLimitBlocked     = "rate_limit_blocked_total"
	MetricRateLimitRedisErrors = "rate_limit_redis_errors_total"
	MetricHTTPRequestDuration  = "http_request_duration_seconds"
	MetricHTTPRequestsTotal    = "http_requests_total"
	MetricHTTPResponseSize     = "http_response_size_bytes"
	MetricNearbyQueries        = "nearby_queries_total"
	MetricNearbyRadiusClamped  = "nearby_radius_clamped_total"
	MetricNearbyResults        = "nearby_results_per_query"
)

// Metrics contains Prometheus metrics for the HTTP layer and the nearby
// search pipeline. All operations are thread-safe.
type Metrics struct {
	rateLimitRequests    *prometheus.CounterVec
	rateLimitBlocked     *prometheus.CounterVec
	rateLimitRedisErrors prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpResponseSize     *prometheus.HistogramVec
	nearbyQueries        *prometheus.CounterVec
	nearbyRadiusClamped  prometheus.Counter
	nearbyResults        prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rateLimitRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitRequests,
				Help: "Total number of rate limit checks by endpoint",
			},
			[]string{"endpoint", "key_type"},
		),
		rateLimitBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitBlocked,
				Help: "Total number of blocked requests by endpoint",
			},
			[]string{"endpoint", "key_type"},
		),
		rateLimitRedisErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRateLimitRedisErrors,
				Help: "Total number of Redis errors during rate limiting (fail-open events)",
			},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPResponseSize,
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path", "status"},
		),
		nearbyQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNearbyQueries,
				Help: "Total number of nearby place queries by outcome",
			},
			[]string{"outcome"},
		),
		nearbyRadiusClamped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricNearbyRadiusClamped,
				Help: "Total number of queries whose requested radius exceeded the unlocked tier",
			},
		),
		nearbyResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricNearbyResults,
				Help:    "Number of candidates matched per nearby query before pagination",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRateLimitRequests increments the rate limit requests counter.
func (m *Metrics) IncRateLimitRequests(endpoint, keyType string) {
	m.rateLimitRequests.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitBlocked increments the rate limit blocked counter.
func (m *Metrics) IncRateLimitBlocked(endpoint, keyType string) {
	m.rateLimitBlocked.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitRedisErrors increments the Redis fail-open counter.
func (m *Metrics) IncRateLimitRedisErrors() {
	m.rateLimitRedisErrors.Inc()
}

// ObserveHTTPRequest records HTTP request metrics for one completed request.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, responseSize int64) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

// ObserveNearbyQuery records the outcome of one nearby query ("ok",
// "validation_error", "dependency_error", "internal_error") plus whether the radius-tier
// cap engaged and how many candidates matched.
func (m *Metrics) ObserveNearbyQuery(outcome string, clamped bool, totalResults int) {
	m.nearbyQueries.WithLabelValues(outcome).Inc()
	if clamped {
		m.nearbyRadiusClamped.Inc()
	}
	if outcome == "ok" {
		m.nearbyResults.Observe(float64(totalResults))
	}
}

// Collectors returns all Prometheus collectors for registration and tests.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitRedisErrors,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpResponseSize,
		m.nearbyQueries,
		m.nearbyRadiusClamped,
		m.nearbyResults,
	}
}
