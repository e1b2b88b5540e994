package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to
// prevent cardinality explosion in metrics, e.g. /places/123 -> /places/{id}.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":              true,
		"/places":        true,
		"/places/nearby": true,
		"/health":        true,
		"/health/live":   true,
		"/health/ready":  true,
		"/metrics":       true,
	}
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/places/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "verify" {
			return "/places/{id}/verify"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/places/{id}"
		}
	}

	// Unknown patterns pass through so new routes still get metrics.
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and
// response size for metric labels.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer so context updates made below this
// middleware still reach the logging wrapper outside it.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records request duration, counts, and
// response sizes. Health endpoints are excluded to keep the metrics useful.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				mrw.size,
			)
		})
	}
}
