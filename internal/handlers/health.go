package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health handles GET /health. Any failing check turns the status into 503.
// Open forwarder circuits are listed but do not fail the check.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	code := http.StatusOK

	checks := make(map[string]string, len(h.healthChecks))
	for _, hc := range h.healthChecks {
		if err := hc.Check(ctx); err != nil {
			checks[hc.Name] = "unhealthy: " + err.Error()
			status["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		} else {
			checks[hc.Name] = "healthy"
		}
	}
	status["checks"] = checks

	if h.breakers != nil {
		status["circuit_breakers"] = h.breakers.Stats()
		if open := h.breakers.Open(); len(open) > 0 {
			status["open_circuits"] = open
		}
	}

	writeJSON(w, code, status)
}
