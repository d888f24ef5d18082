package db

import (
	"context"
	"time"

	"gatekeeper/internal/domain"

	"gorm.io/gorm"
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) List(ctx context.Context) ([]domain.Item, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ItemModel
	if err := r.db.WithContext(ctx).Order("created_at asc").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Item, 0, len(models))
	for _, model := range models {
		items = append(items, domain.Item{
			ID:          model.ID,
			Description: model.Description,
			Price:       model.Price,
		})
	}
	return items, nil
}

func (r *ItemRepository) Create(ctx context.Context, item domain.Item) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if item.ID == "" {
		id, err := newUUID()
		if err != nil {
			return err
		}
		item.ID = id
	}
	model := ItemModel{
		ID:          item.ID,
		Description: item.Description,
		Price:       item.Price,
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}
