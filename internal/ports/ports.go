// Package ports declares the contracts between the authentication core
// and its collaborators. Strategies and HTTP adapters depend on these
// interfaces only, never on a concrete store or hasher.
package ports

import (
	"context"
	"time"

	"github.com/latchkey-io/latchkey/internal/domain"
)

// UserLookup resolves identity records. The auth core consumes it;
// user management owns the data.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
}

// UserWriter provisions identity records. Only the operator CLI uses
// it; request-path code never writes users.
type UserWriter interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// PasswordVerifier checks a plaintext password against a stored hash
// in constant time. Hash exists for provisioning; the request path
// only ever calls Verify.
type PasswordVerifier interface {
	Verify(plain, hashed string) bool
	Hash(plain string) (string, error)
}

// SessionStore is the shared session state behind the session
// strategies. One interface, several implementations: in-memory for
// session_auth and session_exp_auth, Postgres or Redis for
// session_db_auth.
//
// Implementations must be safe for concurrent use; operations on a
// single session id are atomic with respect to each other. Create
// refuses an id that is already present so callers can guarantee
// global id uniqueness by regenerating on domain.ErrSessionExists.
// Delete is idempotent and reports whether a record was removed.
type SessionStore interface {
	Create(ctx context.Context, sess domain.Session) error
	Get(ctx context.Context, sessionID string) (domain.Session, error)
	Delete(ctx context.Context, sessionID string) (bool, error)

	// ListByUser returns every stored session for a user, supporting
	// "list active sessions" views and bulk invalidation.
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	// DeleteByUser removes all of a user's sessions and reports how
	// many were removed (password-change invalidation).
	DeleteByUser(ctx context.Context, userID string) (int, error)
	// CleanupExpired removes records whose deadline has passed at the
	// given instant. It applies the same expiry predicate as lookups,
	// so a record a concurrent lookup still considers fresh is never
	// swept. Safe to run concurrently with resolution.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}
