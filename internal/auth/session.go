package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/abtime"

	"github.com/latchkey-io/latchkey/internal/domain"
	"github.com/latchkey-io/latchkey/internal/ports"
)

// createAttempts bounds id regeneration on the (practically
// unreachable) UUIDv4 collision path.
const createAttempts = 3

// SessionAuth authenticates requests by an opaque session cookie. The
// three session variants are the same machinery with different wiring:
// session_auth is non-expiring, session_exp_auth adds a duration, and
// session_db_auth adds a duration and a durable store. The variants
// differ only in Name, duration and backing store, never in request
// handling code.
type SessionAuth struct {
	name       string
	store      ports.SessionStore
	users      ports.UserLookup
	cookieName string
	duration   time.Duration
	clock      abtime.AbstractTime
}

// NewSessionAuth builds the non-expiring variant. The configured
// session duration is ignored; sessions live until destroyed.
func NewSessionAuth(cfg Config, store ports.SessionStore, users ports.UserLookup, clock abtime.AbstractTime) *SessionAuth {
	return newSessionAuth(TypeSession, cfg.cookieName(), 0, store, users, clock)
}

// NewSessionExpAuth builds the expiring variant. A non-positive
// duration degrades it to the non-expiring behavior.
func NewSessionExpAuth(cfg Config, store ports.SessionStore, users ports.UserLookup, clock abtime.AbstractTime) *SessionAuth {
	return newSessionAuth(TypeSessionExp, cfg.cookieName(), cfg.SessionDuration, store, users, clock)
}

// NewSessionDBAuth builds the durable variant. The store must outlive
// the process; callers wire Postgres or Redis here, never the
// in-memory store.
func NewSessionDBAuth(cfg Config, store ports.SessionStore, users ports.UserLookup, clock abtime.AbstractTime) *SessionAuth {
	return newSessionAuth(TypeSessionDB, cfg.cookieName(), cfg.SessionDuration, store, users, clock)
}

func newSessionAuth(name, cookieName string, duration time.Duration, store ports.SessionStore, users ports.UserLookup, clock abtime.AbstractTime) *SessionAuth {
	if duration < 0 {
		duration = 0
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &SessionAuth{
		name:       name,
		store:      store,
		users:      users,
		cookieName: cookieName,
		duration:   duration,
		clock:      clock,
	}
}

func (s *SessionAuth) Name() string { return s.name }

// CookieName returns the cookie the strategy reads sessions from.
// Handlers use it when setting and clearing the cookie on login and
// logout.
func (s *SessionAuth) CookieName() string { return s.cookieName }

// ExtractCredential returns the session cookie value.
func (s *SessionAuth) ExtractCredential(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return "", domain.ErrMissingCredential
	}
	return cookie.Value, nil
}

// CreateSession issues a fresh session id for the user and persists the
// record before returning. The store refuses duplicate ids, so a
// returned id is guaranteed to have been absent; on the collision
// sentinel the id is regenerated and the create retried. The write uses
// a context detached from request cancellation so a client that
// disconnects mid-login cannot leave a half-issued session.
func (s *SessionAuth) CreateSession(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("create session: %w", domain.ErrUserNotFound)
	}

	now := s.clock.Now().UTC()
	sess := domain.Session{UserID: userID, CreatedAt: now}
	if s.duration > 0 {
		sess.ExpiresAt = now.Add(s.duration)
	}

	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		sess.SessionID = uuid.NewString()
		err = s.store.Create(context.WithoutCancel(ctx), sess)
		if err == nil {
			return sess.SessionID, nil
		}
		if !errors.Is(err, domain.ErrSessionExists) {
			return "", fmt.Errorf("persist session: %w", err)
		}
	}
	return "", fmt.Errorf("persist session after %d attempts: %w", createAttempts, err)
}

// UserIDForSession resolves a session id to its owning user id,
// enforcing expiry. An expired record is evicted as a side effect of
// the lookup that observes it; concurrent lookups of the same expired
// session all report domain.ErrSessionExpired regardless of which one
// wins the eviction.
func (s *SessionAuth) UserIDForSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", domain.ErrSessionNotFound
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.Expired(s.clock.Now().UTC()) {
		if _, err := s.store.Delete(context.WithoutCancel(ctx), sessionID); err != nil {
			return "", fmt.Errorf("evict expired session: %w", err)
		}
		return "", domain.ErrSessionExpired
	}
	return sess.UserID, nil
}

// DestroySession removes the session. It reports false when the id was
// already gone, which callers translate into a logout failure.
func (s *SessionAuth) DestroySession(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	return s.store.Delete(context.WithoutCancel(ctx), sessionID)
}

// ResolveIdentity authenticates the request from its session cookie:
// extract the id, resolve it against the store, then load the user it
// points at. A session whose user has since been deleted resolves to
// domain.ErrUserNotFound, which the middleware treats as
// unauthenticated.
func (s *SessionAuth) ResolveIdentity(ctx context.Context, r *http.Request) (domain.User, error) {
	sessionID, err := s.ExtractCredential(r)
	if err != nil {
		return domain.User{}, err
	}
	userID, err := s.UserIDForSession(ctx, sessionID)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *SessionAuth) CurrentUser(ctx context.Context, r *http.Request) (domain.User, bool) {
	user, err := s.ResolveIdentity(ctx, r)
	return user, err == nil
}
