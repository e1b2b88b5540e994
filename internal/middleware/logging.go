// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// userIDKey is the context key for the authenticated user ID.
type userIDKey struct{}

// errorCodeKey is the context key for error code.
type errorCodeKey struct{}

// SetUserID stores the authenticated user ID in the context.
// Called by the auth middleware after validating the bearer token.
func SetUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// GetUserID retrieves the user ID from context. Returns empty string for
// anonymous requests.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetErrorCode stores an error code in the context.
// Called by handlers when returning error responses so the logging
// middleware can attach the code to the request log line.
func SetErrorCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context. Returns empty string if not present.
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code, response
// size, and context updates made by handlers after the request context forked.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
	ctx         context.Context
}

// WriteHeader captures the status code before writing it. Only the first
// call sets the status, matching net/http behavior.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Unwrap exposes the underlying writer for http.ResponseController and for
// UpdateResponseContext's wrapper walk.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// newResponseWriter creates a new responseWriter with default 200 status.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// UpdateResponseContext hands a handler-derived context back to the logging
// middleware through the wrapped writer. Handlers derive contexts (for user
// IDs and error codes) after the middleware chain captured r.Context(), so
// the writer is the only channel back. Middleware inside Logging wrap the
// writer again, so walk Unwrap until the logging wrapper surfaces. No-op
// when it never does.
func UpdateResponseContext(w http.ResponseWriter, ctx context.Context) {
	for {
		switch v := w.(type) {
		case *responseWriter:
			v.ctx = ctx
			return
		case interface{ Unwrap() http.ResponseWriter }:
			w = v.Unwrap()
		default:
			return
		}
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler.
// Otherwise, it returns a text handler for development.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging is a middleware that logs HTTP requests with structured fields:
// method, path, status, latency (ms), response size, request ID, user ID
// (if authenticated), and error_code for 4xx/5xx responses.
//
// If a handler panics the log entry is not written; a recovery middleware
// belongs outside this one.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			latency := time.Since(start).Milliseconds()

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", latency),
				slog.Int("size", rw.size),
			}

			// User IDs and error codes live on contexts derived below this
			// middleware (auth, handlers); the wrapped writer carries the
			// most derived one back.
			ctx := r.Context()
			if rw.ctx != nil {
				ctx = rw.ctx
			}

			if requestID := GetRequestID(ctx); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			if userID := GetUserID(ctx); userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}
			if rw.statusCode >= 400 {
				if errorCode := GetErrorCode(ctx); errorCode != "" {
					attrs = append(attrs, slog.String("error_code", errorCode))
				}
			}

			switch {
			case rw.statusCode >= 500:
				logger.LogAttrs(r.Context(), slog.LevelError, "request completed", attrs...)
			case rw.statusCode >= 400:
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed", attrs...)
			default:
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}
