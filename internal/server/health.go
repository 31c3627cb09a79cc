package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK        = "ok"
	healthStatusNotReady  = "not ready"
	healthStatusUnhealthy = "unhealthy"
)

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// missingVars lists required configuration that is absent
	missingVars []string
	// startTime tracks when the server started
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker. A non-empty missingVars
// slice keeps the readiness probe failing until the deployment is fixed.
func NewHealthChecker(missingVars []string) *HealthChecker {
	return &HealthChecker{
		missingVars: missingVars,
		startTime:   time.Now(),
	}
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status      string   `json:"status"`
	Uptime      string   `json:"uptime,omitempty"`
	MissingVars []string `json:"missing_vars,omitempty"`
}

// Liveness handles the /healthz endpoint. Liveness indicates whether the
// process should be restarted, so it only checks that the server runs.
func (h *HealthChecker) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
}

// Readiness handles the /readyz endpoint. The server is not ready while
// shutting down or while required configuration is missing.
func (h *HealthChecker) Readiness(w http.ResponseWriter, _ *http.Request) {
	if len(h.missingVars) > 0 {
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
			Status:      healthStatusUnhealthy,
			MissingVars: h.missingVars,
		})
		return
	}

	if !h.ready.Load() {
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady})
		return
	}

	writeHealth(w, http.StatusOK, HealthResponse{
		Status: healthStatusOK,
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	})
}

func writeHealth(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
