package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// uuidPattern constrains community IDs in routes so that a malformed ID
// is a 404 rather than a request the admin path rules cannot match.
const uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

// healthCheckTimeout bounds the database ping done by GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Bearer authentication, then tenant-admin authorization
	r.Use(s.pipeline.Authentication.Middleware)
	r.Use(s.pipeline.Authorization.Middleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/confirm-email", s.handleConfirmEmail)
			r.Post("/confirm-email/resend", s.handleResendConfirmation)
			r.Post("/password-reset", s.handleRequestPasswordReset)
			r.Post("/password-reset/confirm", s.handleResetPassword)

			r.With(s.requireIdentity).Get("/me", s.handleMe)
		})

		r.Route("/communities", func(r chi.Router) {
			r.Use(s.requireIdentity)

			r.Get("/", s.handleListCommunities)
			r.Post("/", s.handleCreateCommunity)

			// Guarded by the authorization filter's admin path rules.
			r.Route("/{id:"+uuidPattern+"}", func(r chi.Router) {
				r.Get("/admins", s.handleListAdmins)
				r.Post("/admins", s.handleAddAdmin)
				r.Get("/amenities", s.handleListAmenities)
				r.Post("/amenities", s.handleCreateAmenity)
				r.Get("/audit", s.handleListAudit)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check: database unavailable", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
	})
}
