package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/latchkey-io/latchkey/internal/auth"
)

// DefaultExcludedPaths are the routes reachable without a credential
// when the operator configures none: health, metrics, the status
// probe, the error smoke-test routes and the login form itself.
var DefaultExcludedPaths = []string{
	"/healthz",
	"/metrics",
	"/api/v1/status/",
	"/api/v1/unauthorized/",
	"/api/v1/forbidden/",
	"/api/v1/auth_session/login/",
}

// NewRouter assembles the middleware chain and routes. The auth guard
// wraps everything; exclusion is decided per path inside the guard, so
// adding a route here never silently bypasses authentication.
func NewRouter(handler *Handler, guard *AuthMiddleware) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(guard.Handler)

	r.Get("/healthz", handler.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handler.status)
		r.Get("/status/", handler.status)
		r.Get("/unauthorized", handler.unauthorized)
		r.Get("/forbidden", handler.forbidden)
		r.Get("/users/me", handler.me)

		// Session routes only exist for session-backed strategies.
		if _, ok := handler.strategy.(auth.SessionManager); ok {
			r.Post("/auth_session/login", handler.login)
			r.Delete("/auth_session/logout", handler.logout)
			r.Get("/sessions", handler.listSessions)
			r.Delete("/sessions", handler.revokeSessions)
		}
	})

	return r
}
