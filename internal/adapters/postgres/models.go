package postgres

import (
	"time"

	"github.com/latchkey-io/latchkey/internal/domain"
)

type userModel struct {
	UserID       string    `gorm:"column:user_id;primaryKey"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type sessionModel struct {
	SessionID string     `gorm:"column:session_id;primaryKey"`
	UserID    string     `gorm:"column:user_id;index"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
}

func (sessionModel) TableName() string { return "sessions" }

func toDomainUser(rec userModel) domain.User {
	return domain.User{
		ID:           rec.UserID,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func toDomainSession(rec sessionModel) domain.Session {
	sess := domain.Session{
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
	}
	if rec.ExpiresAt != nil {
		sess.ExpiresAt = *rec.ExpiresAt
	}
	return sess
}

func toSessionModel(sess domain.Session) sessionModel {
	rec := sessionModel{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
	}
	if !sess.ExpiresAt.IsZero() {
		expires := sess.ExpiresAt
		rec.ExpiresAt = &expires
	}
	return rec
}
