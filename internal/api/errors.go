// Package api provides the HTTP handlers and response envelopes for the
// Karib API server.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/karibapp/karib/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeDependencyUnavailable indicates a backing service failed.
	ErrCodeDependencyUnavailable = "dependency_unavailable"
)

// ErrorResponse is the standard error envelope:
// {"success": false, "message": "...", "details": {...}}
type ErrorResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// SuccessResponse is the standard success envelope:
// {"success": true, "data": ..., "meta": {...}}
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Meta    any  `json:"meta,omitempty"`
}

// PageMeta carries pagination info in the meta field of list responses.
type PageMeta struct {
	Total                 int     `json:"total"`
	Limit                 int     `json:"limit"`
	Offset                int     `json:"offset"`
	EffectiveRadiusMeters float64 `json:"effective_radius_m,omitempty"`
}

// WriteError writes a standardized JSON error response and records the error
// code on the context so the logging middleware picks it up. Pass a context
// already tagged with middleware.SetErrorCode, or the request context.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	WriteErrorWithDetails(w, ctx, status, code, message, nil)
}

// WriteErrorWithDetails writes an error envelope with a details map, used by
// validation failures to name the offending field.
func WriteErrorWithDetails(w http.ResponseWriter, ctx context.Context, status int, code, message string, details map[string]any) {
	ctx = middleware.SetErrorCode(ctx, code)
	middleware.UpdateResponseContext(w, ctx)

	resp := ErrorResponse{
		Success: false,
		Message: message,
		Details: details,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteSuccess writes a success envelope with optional meta.
func WriteSuccess(w http.ResponseWriter, ctx context.Context, status int, data, meta any) {
	resp := SuccessResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}

	body, err := json.Marshal(resp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}
