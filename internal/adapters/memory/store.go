// Package memory provides process-local implementations of the session
// store and user directory. They back basic_auth, session_auth and
// session_exp_auth, and serve as fixtures in tests; session_db_auth
// must use a durable adapter instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/latchkey-io/latchkey/internal/domain"
)

// SessionStore is a mutex-guarded map keyed by session id. Every
// operation takes the lock for its whole critical section, so
// check-then-act sequences such as Create's duplicate refusal are
// atomic.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewSessionStore returns an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

func (s *SessionStore) Create(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.SessionID]; exists {
		return domain.ErrSessionExists
	}
	s.sessions[sess.SessionID] = sess
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

func (s *SessionStore) ListByUser(_ context.Context, userID string) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *SessionStore) DeleteByUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *SessionStore) CleanupExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored sessions. Test helper.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// UserDirectory is an in-memory user registry indexed by id and email.
// It implements both the lookup and writer ports.
type UserDirectory struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

// NewUserDirectory returns an empty in-memory user directory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (d *UserDirectory) Create(_ context.Context, user domain.User) (domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, taken := d.byEmail[user.Email]; taken {
		return domain.User{}, domain.ErrUserExists
	}
	d.byID[user.ID] = user
	d.byEmail[user.Email] = user.ID
	return user, nil
}

func (d *UserDirectory) FindByEmail(_ context.Context, email string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return d.byID[id], nil
}

func (d *UserDirectory) FindByID(_ context.Context, id string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}
