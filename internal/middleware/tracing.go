package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing instruments every request with an OpenTelemetry span and handles
// W3C trace context propagation (traceparent/tracestate). Place it after
// RequestID so request IDs are available to span processors.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + normalizePath(r.URL.Path)
			}),
		)
	}
}

// GetTraceID returns the active trace ID for the request, or "" when no
// trace is recording.
func GetTraceID(r *http.Request) string {
	spanCtx := trace.SpanContextFromContext(r.Context())
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// GetSpanID returns the active span ID for the request, or "" when no span
// is recording.
func GetSpanID(r *http.Request) string {
	spanCtx := trace.SpanContextFromContext(r.Context())
	if spanCtx.IsValid() {
		return spanCtx.SpanID().String()
	}
	return ""
}
