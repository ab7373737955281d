// health.go - Liveness and readiness endpoints.
package server

import (
	"context"
	"net/http"
	"time"
)

// ComponentHealth reports one dependency's state.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health is the /health response body.
type Health struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
	Metrics    MetricsSnapshot            `json:"metrics"`
}

// healthHandler handles GET /health. Degrades to 503 when the database is
// unreachable; media host outages do not fail the check since reads keep
// working without it.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	h := Health{
		Status:     "ok",
		Version:    s.version,
		Components: map[string]ComponentHealth{},
	}

	if err := s.store.Ping(ctx); err != nil {
		h.Status = "degraded"
		h.Components["database"] = ComponentHealth{Status: "down", Message: err.Error()}
	} else {
		h.Components["database"] = ComponentHealth{Status: "up"}
	}
	if s.media != nil {
		h.Components["media"] = ComponentHealth{Status: "up"}
	} else {
		h.Components["media"] = ComponentHealth{Status: "disabled", Message: "media host not configured"}
	}
	h.Metrics = GetMetrics().Snapshot()

	code := http.StatusOK
	if h.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

// testHandler handles GET /api/test, a trivial liveness probe kept for
// frontend compatibility.
func (s *Server) testHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Backend API is working properly!"})
}
