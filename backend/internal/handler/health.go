package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/crmportal/crmportal/shared/logger"
)

// Health is a liveness probe endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Ready is a readiness probe endpoint.
// Returns 503 Service Unavailable while the user store or any dependency
// added with WithReadiness does not answer.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		logger.Log.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("storage unavailable"))
		return
	}
	for _, c := range h.checks {
		if err := c.checker.Ping(ctx); err != nil {
			logger.Log.Warn("readiness check failed", "dependency", c.name, "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(c.name + " unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
