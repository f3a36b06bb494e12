package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crmportal/crmportal/backend/internal/setup"
	mw "github.com/crmportal/crmportal/shared/middleware"
	"github.com/crmportal/crmportal/shared/middleware/metrics"
)

// New creates the chi router with all the routes.
// Rate limiters are keyed by identity, so one limiter can guard several routes.
func New(deps *setup.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config.Public

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", mw.AdminTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.SecurityHeaders(cfg.SecureCookies, mw.APIContentSecurityPolicy))

	h := deps.Handler
	limits := deps.Limiters

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		r.Use(mw.RateLimit(limits.IP, mw.GetIP))

		r.Route("/auth", func(r chi.Router) {
			// endpoints that send email
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit(limits.Email, mw.GetEmailFromBody))
				r.Post("/register", h.Register)
				r.Post("/resend-verification", h.ResendVerification)
				r.Post("/forgot-password", h.ForgotPassword)
			})

			r.With(mw.RateLimit(limits.Login, mw.GetEmailFromBody)).Post("/login", h.Login)

			r.Post("/verify-email", h.VerifyEmail)
			r.Post("/reset-password", h.ResetPassword)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)

			r.With(deps.AuthMiddleware.NeedAuth()).Get("/me", h.Me)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.AdminOnly(deps.Config.AdminToken()))
			r.Post("/users/verify", h.AdminVerifyEmail)
		})
	})

	return r
}
