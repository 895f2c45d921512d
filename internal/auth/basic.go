package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/latchkey-io/latchkey/internal/domain"
	"github.com/latchkey-io/latchkey/internal/ports"
)

const basicPrefix = "Basic "

// BasicAuth authenticates every request from an Authorization header of
// the form "Basic base64(email:password)". It keeps no per-request
// state and issues nothing; it is the stateless baseline strategy.
type BasicAuth struct {
	users    ports.UserLookup
	verifier ports.PasswordVerifier
}

// NewBasicAuth wires the Basic strategy to its user directory and
// password verifier.
func NewBasicAuth(users ports.UserLookup, verifier ports.PasswordVerifier) *BasicAuth {
	return &BasicAuth{users: users, verifier: verifier}
}

func (b *BasicAuth) Name() string { return TypeBasic }

// ExtractCredential returns the base64 payload of the Authorization
// header. The scheme comparison is case-insensitive; exactly one space
// separates scheme and payload.
func (b *BasicAuth) ExtractCredential(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", domain.ErrMissingCredential
	}
	if len(header) <= len(basicPrefix) || !strings.EqualFold(header[:len(basicPrefix)], basicPrefix) {
		return "", fmt.Errorf("authorization header is not Basic: %w", domain.ErrMalformedCredential)
	}
	return header[len(basicPrefix):], nil
}

// decodeCredentials turns the base64 payload into an email/password
// pair. The split is on the first colon, so passwords may themselves
// contain colons. An empty email is rejected; an empty password is
// left for the verifier to refuse.
func decodeCredentials(payload string) (domain.Credentials, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("decode basic payload: %w", domain.ErrMalformedCredential)
	}
	email, password, ok := strings.Cut(string(raw), ":")
	if !ok || email == "" {
		return domain.Credentials{}, fmt.Errorf("basic payload has no email:password pair: %w", domain.ErrMalformedCredential)
	}
	return domain.Credentials{Email: email, Password: password}, nil
}

// ResolveIdentity authenticates the request end to end: extract,
// decode, look up the user by email, verify the password. A lookup
// miss and a password mismatch both surface as
// domain.ErrInvalidCredential so responses cannot be used to probe
// which emails exist.
func (b *BasicAuth) ResolveIdentity(ctx context.Context, r *http.Request) (domain.User, error) {
	payload, err := b.ExtractCredential(r)
	if err != nil {
		return domain.User{}, err
	}
	creds, err := decodeCredentials(payload)
	if err != nil {
		return domain.User{}, err
	}

	user, err := b.users.FindByEmail(ctx, creds.Email)
	switch {
	case err == nil:
	case domain.Unauthenticated(err):
		return domain.User{}, domain.ErrInvalidCredential
	default:
		return domain.User{}, fmt.Errorf("find user by email: %w", err)
	}

	if !b.verifier.Verify(creds.Password, user.PasswordHash) {
		return domain.User{}, domain.ErrInvalidCredential
	}
	return user, nil
}

func (b *BasicAuth) CurrentUser(ctx context.Context, r *http.Request) (domain.User, bool) {
	user, err := b.ResolveIdentity(ctx, r)
	return user, err == nil
}
