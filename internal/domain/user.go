package domain

import "time"

// User is the identity record the authentication layer resolves to.
// It is created and mutated by the user-management side of the system;
// the auth core only ever looks it up.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credentials is the transient email/password pair extracted from a
// single request. It is checked once and discarded; it must never be
// persisted or logged.
type Credentials struct {
	Email    string
	Password string
}

// Session links an opaque token to a user identity so clients do not
// resend credentials on every request.
//
// ExpiresAt is written once at creation (CreatedAt plus the configured
// duration) and never updated afterwards; a zero ExpiresAt means the
// session does not expire. Keeping the deadline on the record gives
// lookups and maintenance sweeps one shared expiry predicate.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session's deadline has passed at the
// given instant. Sessions without a deadline never expire.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
