package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/karibapp/karib/internal/health"
)

// HealthHandlers provides liveness and readiness endpoints for orchestrator
// probes.
type HealthHandlers struct {
	registry *health.Registry
}

// NewHealthHandlers creates a health check handler over the given registry.
func NewHealthHandlers(registry *health.Registry) *HealthHandlers {
	return &HealthHandlers{registry: registry}
}

// HealthResponse is the JSON body for health probes.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Live handles GET /health and GET /health/live. If the process can answer,
// it is alive.
func (h *HealthHandlers) Live(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	writeHealth(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /health/ready. It probes registered dependencies and
// returns 503 when any of them fail, so the instance is pulled from rotation
// instead of serving errors.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	results := h.registry.CheckAll(r.Context())

	response := HealthResponse{
		Status:    "ready",
		Checks:    make(map[string]string, len(results)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	for name, err := range results {
		if err != nil {
			response.Checks[name] = err.Error()
			response.Status = "not_ready"
			status = http.StatusServiceUnavailable
		} else {
			response.Checks[name] = "ok"
		}
	}

	writeHealth(w, status, response)
}

func writeHealth(w http.ResponseWriter, status int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}
