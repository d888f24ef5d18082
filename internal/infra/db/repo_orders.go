package db

import (
	"context"
	"errors"
	"time"

	"gatekeeper/internal/domain"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r.db == nil {
		return domain.Order{}, errDBUnavailable
	}
	if order.ID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.Order{}, err
		}
		order.ID = id
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	model := OrderModel{
		ID:        order.ID,
		ItemID:    order.ItemID,
		Quantity:  order.Quantity,
		OrderedBy: order.OrderedBy,
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Order{}, err
	}
	return orderFromModel(model), nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model OrderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	order := orderFromModel(model)
	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []OrderModel
	if err := r.db.WithContext(ctx).Order("created_at asc").Find(&models).Error; err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(models))
	for _, model := range models {
		orders = append(orders, orderFromModel(model))
	}
	return orders, nil
}

func orderFromModel(model OrderModel) domain.Order {
	return domain.Order{
		ID:        model.ID,
		ItemID:    model.ItemID,
		Quantity:  model.Quantity,
		OrderedBy: model.OrderedBy,
		Status:    domain.OrderStatus(model.Status),
		CreatedAt: model.CreatedAt,
	}
}
