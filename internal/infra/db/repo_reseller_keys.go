package db

import (
	"context"
	"errors"
	"time"

	"gatekeeper/internal/domain"

	"gorm.io/gorm"
)

type ResellerKeyRepository struct {
	db *gorm.DB
}

func NewResellerKeyRepository(db *gorm.DB) *ResellerKeyRepository {
	return &ResellerKeyRepository{db: db}
}

func (r *ResellerKeyRepository) FindByKey(ctx context.Context, key string) (*domain.ResellerKey, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ResellerKeyModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.ResellerKey{
		Key:        model.Key,
		ResellerID: model.ResellerID,
	}, nil
}

func (r *ResellerKeyRepository) Create(ctx context.Context, key domain.ResellerKey) error {
	if r.db == nil {
		return errDBUnavailable
	}
	id, err := newUUID()
	if err != nil {
		return err
	}
	model := ResellerKeyModel{
		ID:         id,
		Key:        key.Key,
		ResellerID: key.ResellerID,
		CreatedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}
