package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/latchkey-io/latchkey/internal/domain"
)

// SessionStore persists sessions in the sessions table. Per-row
// atomicity comes from Postgres itself: the primary key makes Create's
// duplicate refusal a constraint violation, and Delete's row count
// arbitrates racing evictions.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore wraps an open GORM handle.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, sess domain.Session) error {
	rec := toSessionModel(sess)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrSessionExists
		}
		return storeErr("insert session", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	var rec sessionModel
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, storeErr("select session", err)
	}
	return toDomainSession(rec), nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&sessionModel{})
	if res.Error != nil {
		return false, storeErr("delete session", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	var rows []sessionModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("list sessions by user", err)
	}
	out := make([]domain.Session, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainSession(rec))
	}
	return out, nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&sessionModel{})
	if res.Error != nil {
		return 0, storeErr("delete sessions by user", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *SessionStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&sessionModel{})
	if res.Error != nil {
		return 0, storeErr("cleanup expired sessions", res.Error)
	}
	return int(res.RowsAffected), nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
