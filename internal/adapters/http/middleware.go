package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/latchkey-io/latchkey/internal/auth"
	"github.com/latchkey-io/latchkey/internal/domain"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyUser      ctxKey = "current_user"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		outcome := "success"
		if statusCode >= 400 {
			outcome = "failure"
		}

		fields := []any{
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		switch {
		case statusCode >= 500:
			httpLogger().ErrorContext(r.Context(), "http request completed", fields...)
		case statusCode >= 400:
			httpLogger().WarnContext(r.Context(), "http request completed", fields...)
		default:
			httpLogger().InfoContext(r.Context(), "http request completed", fields...)
		}
	})
}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

// UserFromContext returns the identity the auth middleware attached to
// the request. It is only present on requests that passed a guarded
// route.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(ctxKeyUser).(domain.User)
	return user, ok
}

// AuthMiddleware guards every route with the active strategy. The
// decision table is fixed: excluded paths pass untouched, a resolved
// identity is attached to the context, a missing or stale credential is
// 401, a well-formed but wrong credential is 403, and a store fault is
// 500 so an outage can never be mistaken for a valid login.
type AuthMiddleware struct {
	strategy      auth.Strategy
	excludedPaths []string
}

// NewAuthMiddleware builds the guard around the active strategy.
func NewAuthMiddleware(strategy auth.Strategy, excludedPaths []string) *AuthMiddleware {
	return &AuthMiddleware{strategy: strategy, excludedPaths: excludedPaths}
}

// Handler wraps next with the authentication decision.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.RequiresAuth(r.URL.Path, m.excludedPaths) {
			authDecisions.WithLabelValues(m.strategy.Name(), outcomeExcluded).Inc()
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.strategy.ResolveIdentity(r.Context(), r)
		switch {
		case err == nil:
			authDecisions.WithLabelValues(m.strategy.Name(), outcomeAllowed).Inc()
			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))

		case errors.Is(err, domain.ErrStoreUnavailable):
			authDecisions.WithLabelValues(m.strategy.Name(), outcomeError).Inc()
			httpLogger().ErrorContext(r.Context(), "auth store failure",
				"operation", "authenticate_request",
				"outcome", "failure",
				"request_id", requestIDFromContext(r.Context()),
				"path", r.URL.Path,
				"error", err,
			)
			writeInternalError(w)

		case errors.Is(err, domain.ErrInvalidCredential):
			authDecisions.WithLabelValues(m.strategy.Name(), outcomeForbidden).Inc()
			writeForbidden(w)

		case domain.Unauthenticated(err):
			authDecisions.WithLabelValues(m.strategy.Name(), outcomeUnauthorized).Inc()
			writeUnauthorized(w)

		default:
			authDecisions.WithLabelValues(m.strategy.Name(), outcomeError).Inc()
			httpLogger().ErrorContext(r.Context(), "auth resolution failure",
				"operation", "authenticate_request",
				"outcome", "failure",
				"request_id", requestIDFromContext(r.Context()),
				"path", r.URL.Path,
				"error", err,
			)
			writeInternalError(w)
		}
	})
}
