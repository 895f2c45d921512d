// Package application holds the use-case layer: login, logout, user
// provisioning and session maintenance. Handlers and CLI commands call
// it; it orchestrates the ports and the active strategy without any
// HTTP knowledge.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/abtime"

	"github.com/latchkey-io/latchkey/internal/auth"
	"github.com/latchkey-io/latchkey/internal/domain"
	"github.com/latchkey-io/latchkey/internal/ports"
)

// Service wires the use cases around the active strategy.
type Service struct {
	users    ports.UserLookup
	writer   ports.UserWriter
	verifier ports.PasswordVerifier
	sessions ports.SessionStore
	manager  auth.SessionManager
	clock    abtime.AbstractTime
	logger   *slog.Logger
}

// Dependencies enumerates the collaborators of the service. Manager is
// nil when the active strategy is basic_auth; in that configuration the
// session endpoints are simply not mounted.
type Dependencies struct {
	Users    ports.UserLookup
	Writer   ports.UserWriter
	Verifier ports.PasswordVerifier
	Sessions ports.SessionStore
	Manager  auth.SessionManager
	Clock    abtime.AbstractTime
	Logger   *slog.Logger
}

// NewService builds the use-case layer from its dependencies.
func NewService(deps Dependencies) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    deps.Users,
		writer:   deps.Writer,
		verifier: deps.Verifier,
		sessions: deps.Sessions,
		manager:  deps.Manager,
		clock:    clock,
		logger:   logger,
	}
}

// Login verifies the email/password pair and, on success, issues a
// session for the user. It distinguishes an unknown email
// (domain.ErrUserNotFound) from a wrong password
// (domain.ErrInvalidCredential) because the login form reports the two
// cases differently; the middleware path never makes that distinction.
func (s *Service) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	if s.manager == nil {
		return "", domain.User{}, fmt.Errorf("login requires a session strategy: %w", domain.ErrUnknownAuthType)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.User{}, domain.ErrUserNotFound
		}
		return "", domain.User{}, fmt.Errorf("find user by email: %w", err)
	}
	if !s.verifier.Verify(password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "login rejected",
			"operation", "login",
			"outcome", "failure",
			"user_id", user.ID,
		)
		return "", domain.User{}, domain.ErrInvalidCredential
	}

	sessionID, err := s.manager.CreateSession(ctx, user.ID)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.InfoContext(ctx, "login succeeded",
		"operation", "login",
		"outcome", "success",
		"user_id", user.ID,
	)
	return sessionID, user, nil
}

// Logout destroys the session behind the request. It reports false
// when no such session existed, which the handler maps to 404.
func (s *Service) Logout(ctx context.Context, sessionID string) (bool, error) {
	if s.manager == nil {
		return false, nil
	}
	removed, err := s.manager.DestroySession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("destroy session: %w", err)
	}
	s.logger.InfoContext(ctx, "logout",
		"operation", "logout",
		"outcome", outcome(removed),
	)
	return removed, nil
}

// CreateUser provisions an identity with a freshly hashed password.
// Operator CLI only.
func (s *Service) CreateUser(ctx context.Context, email, password string) (domain.User, error) {
	if s.writer == nil {
		return domain.User{}, fmt.Errorf("user provisioning is not configured")
	}
	if email == "" || password == "" {
		return domain.User{}, domain.ErrMissingCredential
	}
	hash, err := s.verifier.Hash(password)
	if err != nil {
		return domain.User{}, err
	}
	now := s.clock.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.writer.Create(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user created",
		"operation", "create_user",
		"outcome", "success",
		"user_id", created.ID,
	)
	return created, nil
}

// SessionsForUser lists a user's stored sessions, newest first where
// the store orders them.
func (s *Service) SessionsForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	if s.sessions == nil {
		return nil, nil
	}
	return s.sessions.ListByUser(ctx, userID)
}

// RevokeUserSessions removes every session of a user, for password
// changes and account lockouts. Returns how many were removed.
func (s *Service) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	if s.sessions == nil {
		return 0, nil
	}
	removed, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	s.logger.InfoContext(ctx, "user sessions revoked",
		"operation", "revoke_user_sessions",
		"outcome", "success",
		"user_id", userID,
		"removed", removed,
	)
	return removed, nil
}

// CleanupSessions sweeps expired session records. Lazy eviction on
// lookup keeps resolution correct without it; the sweep only reclaims
// storage for sessions nobody presents anymore.
func (s *Service) CleanupSessions(ctx context.Context) (int, error) {
	if s.sessions == nil {
		return 0, nil
	}
	removed, err := s.sessions.CleanupExpired(ctx, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	s.logger.InfoContext(ctx, "expired sessions swept",
		"operation", "cleanup_sessions",
		"outcome", "success",
		"removed", removed,
	)
	return removed, nil
}

// Now reports the service clock, for handlers that stamp responses.
func (s *Service) Now() time.Time { return s.clock.Now().UTC() }

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "not_found"
}
