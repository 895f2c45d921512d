// Package auth implements the pluggable authentication core: the
// strategy contract, the four built-in strategies, and the factory
// registry that binds a configured auth type to a strategy instance at
// startup.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/thejerf/abtime"

	"github.com/latchkey-io/latchkey/internal/domain"
	"github.com/latchkey-io/latchkey/internal/ports"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "_my_session_id"

// Strategy is the capability contract every authentication variant
// implements. The middleware holds exactly one Strategy, chosen at
// startup; it never branches on the concrete type at request time.
type Strategy interface {
	// Name returns the registry key of the strategy (e.g. "basic_auth").
	Name() string

	// ExtractCredential pulls the raw credential carrier from the
	// request: the Authorization header payload for Basic, the session
	// cookie value for the session variants. It returns
	// domain.ErrMissingCredential when nothing is present and
	// domain.ErrMalformedCredential when something is present but
	// unusable.
	ExtractCredential(r *http.Request) (string, error)

	// ResolveIdentity performs extraction, validation and lookup, and
	// returns the authenticated user or a typed domain error. Expected
	// authentication failures are sentinel errors, never panics; only
	// infrastructure faults (wrapped domain.ErrStoreUnavailable) are
	// unexpected.
	ResolveIdentity(ctx context.Context, r *http.Request) (domain.User, error)

	// CurrentUser is the convenience form of ResolveIdentity for
	// callers that do not care why resolution failed.
	CurrentUser(ctx context.Context, r *http.Request) (domain.User, bool)
}

// SessionManager is the additional capability of session-backed
// strategies. Handlers discover it with a type assertion on the active
// Strategy; the Basic strategy deliberately does not implement it.
type SessionManager interface {
	// CreateSession issues a fresh session for the user and returns its
	// id. The id is guaranteed absent from the store at creation time.
	CreateSession(ctx context.Context, userID string) (string, error)
	// UserIDForSession resolves a session id to its user, enforcing
	// expiry. Expired records are evicted by the lookup itself.
	UserIDForSession(ctx context.Context, sessionID string) (string, error)
	// DestroySession removes a session and reports whether a record was
	// actually removed. Destroying twice is safe; the second call
	// returns false.
	DestroySession(ctx context.Context, sessionID string) (bool, error)
}

// Config is the per-strategy slice of the process configuration.
type Config struct {
	// CookieName is the session cookie name; empty means
	// DefaultCookieName.
	CookieName string
	// SessionDuration bounds session validity for the expiring
	// strategies. Zero or negative means sessions never expire.
	SessionDuration time.Duration
}

func (c Config) cookieName() string {
	if c.CookieName == "" {
		return DefaultCookieName
	}
	return c.CookieName
}

// Collaborators carries the external dependencies a factory may need.
// Factories validate that the collaborators they require are present.
type Collaborators struct {
	Users    ports.UserLookup
	Verifier ports.PasswordVerifier
	// Sessions backs session_auth and session_exp_auth; process-local
	// state is acceptable here.
	Sessions ports.SessionStore
	// DurableSessions backs session_db_auth; records must survive a
	// process restart.
	DurableSessions ports.SessionStore
	// Clock is injectable for deterministic expiry tests; nil means
	// real time.
	Clock abtime.AbstractTime
}

func (c Collaborators) clock() abtime.AbstractTime {
	if c.Clock == nil {
		return abtime.NewRealTime()
	}
	return c.Clock
}

// RequiresAuth reports whether a request path is subject to
// authentication. A path is exempt when it matches one of the excluded
// entries; matching is exact after trailing-slash normalization, and an
// entry ending in '*' matches any path with the preceding prefix.
// Pure function, no side effects.
func RequiresAuth(path string, excludedPaths []string) bool {
	if path == "" || len(excludedPaths) == 0 {
		return true
	}

	normalized := ensureTrailingSlash(path)
	for _, pattern := range excludedPaths {
		if pattern == "" {
			continue
		}
		if strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(normalized, pattern[:len(pattern)-1]) {
				return false
			}
			continue
		}
		if normalized == ensureTrailingSlash(pattern) {
			return false
		}
	}
	return true
}

func ensureTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
