package db

import (
	"context"
	"errors"
	"time"

	"gatekeeper/internal/domain"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.User{
		Username:       model.Username,
		PasswordSHA256: model.PasswordSHA256,
		Roles:          splitRoles(model.Roles),
	}, nil
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	if r.db == nil {
		return errDBUnavailable
	}
	id, err := newUUID()
	if err != nil {
		return err
	}
	model := UserModel{
		ID:             id,
		Username:       user.Username,
		PasswordSHA256: user.PasswordSHA256,
		Roles:          joinRoles(user.Roles),
		CreatedAt:      time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}
