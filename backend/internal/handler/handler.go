package handler

import (
	"context"

	"github.com/crmportal/crmportal/backend/internal/service"
	"github.com/crmportal/crmportal/shared/config"
)

// HealthChecker is whatever the readiness probe pings, the user store in practice.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type readinessCheck struct {
	name    string
	checker HealthChecker
}

type Handler struct {
	auth   service.AuthService
	cfg    *config.Config
	health HealthChecker
	checks []readinessCheck
}

func New(auth service.AuthService, cfg *config.Config, health HealthChecker) *Handler {
	return &Handler{
		auth:   auth,
		cfg:    cfg,
		health: health,
	}
}

// WithReadiness adds a dependency to the readiness probe. It is checked
// after the user store, failures answer "<name> unavailable".
func (h *Handler) WithReadiness(name string, checker HealthChecker) *Handler {
	h.checks = append(h.checks, readinessCheck{name: name, checker: checker})
	return h
}
