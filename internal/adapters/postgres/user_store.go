package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/latchkey-io/latchkey/internal/domain"
)

// UserStore implements the user lookup and writer ports on the users
// table.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore wraps an open GORM handle.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, storeErr("select user by email", err)
	}
	return toDomainUser(rec), nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (domain.User, error) {
	var rec userModel
	err := s.db.WithContext(ctx).Where("user_id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, storeErr("select user by id", err)
	}
	return toDomainUser(rec), nil
}

func (s *UserStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	rec := userModel{
		UserID:       user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, storeErr("insert user", err)
	}
	return toDomainUser(rec), nil
}
