package domain

import (
	"context"
	"time"
)

type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "placed"
	OrderStatusDispatched OrderStatus = "dispatched"
)

// Item is an inventory entry visible to everyone.
type Item struct {
	ID          string
	Description string
	Price       int64
}

// Order is a placed order. OrderedBy is the principal name bound by the
// authorization decision that admitted the request.
type Order struct {
	ID        string
	ItemID    string
	Quantity  int
	OrderedBy string
	Status    OrderStatus
	CreatedAt time.Time
}

type ItemStore interface {
	List(ctx context.Context) ([]Item, error)
}

type OrderStore interface {
	Create(ctx context.Context, order Order) (Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
}
