package domain

import "errors"

var (
	// ErrMissingCredential is returned when a request carries neither an
	// Authorization header nor a session cookie for the active strategy.
	ErrMissingCredential = errors.New("missing credential")
	// ErrMalformedCredential is returned when a credential is present but
	// cannot be parsed (bad Basic prefix, invalid base64, no colon).
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrInvalidCredential covers both an unknown email and a wrong
	// password; callers cannot tell the two apart.
	ErrInvalidCredential = errors.New("invalid credentials")

	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a session's deadline has passed.
	// The record is evicted by the lookup that observes the expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionExists signals a session-id collision on create. Callers
	// regenerate the id and retry.
	ErrSessionExists = errors.New("session id already exists")

	// ErrUserNotFound is returned by user lookups; during session
	// resolution it indicates a session pointing at a deleted user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists signals a duplicate email on user provisioning.
	ErrUserExists = errors.New("user already exists")

	// ErrUnknownAuthType is a startup-time configuration error. The
	// process refuses to start rather than silently running with a
	// different strategy than the operator asked for.
	ErrUnknownAuthType = errors.New("unknown auth type")

	// ErrStoreUnavailable wraps infrastructure failures from a durable
	// session store. Requests observing it are treated as
	// unauthenticated, never authenticated (fail closed).
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Unauthenticated reports whether err describes an absent, unreadable,
// or no-longer-valid credential (the 401 class). Invalid but well-formed
// credentials are deliberately excluded; they map to 403.
func Unauthenticated(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrUserNotFound)
}
