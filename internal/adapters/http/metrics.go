package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Middleware outcome labels.
const (
	outcomeAllowed      = "allowed"
	outcomeExcluded     = "excluded"
	outcomeUnauthorized = "unauthorized"
	outcomeForbidden    = "forbidden"
	outcomeError        = "error"
)

var (
	authDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "latchkey_auth_decisions_total",
		Help: "Authentication middleware decisions by outcome.",
	}, []string{"strategy", "outcome"})

	sessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "latchkey_sessions_issued_total",
		Help: "Sessions created through the login endpoint.",
	})

	sessionsDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "latchkey_sessions_destroyed_total",
		Help: "Sessions destroyed through the logout endpoint.",
	})
)
