package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/latchkey-io/latchkey/internal/application"
	"github.com/latchkey-io/latchkey/internal/auth"
	"github.com/latchkey-io/latchkey/internal/domain"
)

// Handler is the HTTP adapter entrypoint. It holds the application
// service plus the active strategy so session endpoints can read and
// write the session cookie.
type Handler struct {
	service         *application.Service
	strategy        auth.Strategy
	cookieName      string
	sessionDuration time.Duration
}

// NewHandler constructs an HTTP handler bound to the application
// service and the active strategy.
func NewHandler(service *application.Service, strategy auth.Strategy, cookieName string, sessionDuration time.Duration) *Handler {
	if cookieName == "" {
		cookieName = auth.DefaultCookieName
	}
	return &Handler{
		service:         service,
		strategy:        strategy,
		cookieName:      cookieName,
		sessionDuration: sessionDuration,
	}
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserView(u domain.User) userView {
	return userView{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// unauthorized and forbidden exist so operators can smoke-test the
// error path end to end, including any proxy in front.
func (h *Handler) unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeUnauthorized(w)
}

func (h *Handler) forbidden(w http.ResponseWriter, _ *http.Request) {
	writeForbidden(w)
}

// login verifies form-encoded credentials and issues a session. The
// login form distinguishes its failures: missing fields are 400 with a
// field-specific message, an unknown email is 404, a wrong password is
// 401. On success the session id travels back only as a cookie, never
// in the body.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email missing")
		return
	}
	if password == "" {
		writeError(w, http.StatusBadRequest, "password missing")
		return
	}

	sessionID, user, err := h.service.Login(r.Context(), email, password)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "no user found for this email")
		return
	case errors.Is(err, domain.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "wrong password")
		return
	default:
		httpLogger().ErrorContext(r.Context(), "login failure",
			"operation", "login",
			"outcome", "failure",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeInternalError(w)
		return
	}

	h.setSessionCookie(w, sessionID)
	sessionsIssued.Inc()
	writeJSON(w, http.StatusOK, toUserView(user))
}

// logout destroys the session named by the request's cookie and clears
// the cookie. A request without a live session is 404.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.strategy.ExtractCredential(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	removed, err := h.service.Logout(r.Context(), sessionID)
	if err != nil {
		httpLogger().ErrorContext(r.Context(), "logout failure",
			"operation", "logout",
			"outcome", "failure",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeInternalError(w)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	h.clearSessionCookie(w)
	sessionsDestroyed.Inc()
	writeJSON(w, http.StatusOK, map[string]any{})
}

// me returns the authenticated identity. The middleware has already
// resolved it; a miss means the route was mounted outside the guard.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

// listSessions returns the caller's stored sessions.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	sessions, err := h.service.SessionsForUser(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// revokeSessions destroys every session of the caller, including the
// one authenticating this request.
func (h *Handler) revokeSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	removed, err := h.service.RevokeUserSessions(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w)
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"revoked": removed})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	cookie := &http.Cookie{
		Name:     h.cookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.sessionDuration > 0 {
		cookie.MaxAge = int(h.sessionDuration / time.Second)
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
