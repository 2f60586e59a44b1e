package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrOrderNotFound = errors.New("order not found")

type Order struct {
	ID         uuid.UUID       `db:"order_id"`
	CustomerID uuid.UUID       `db:"customer_id"`
	Items      []Item          `db:"-"`
	Total      decimal.Decimal `db:"total"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// Item is a priced line of an order. Price is the product price at the
// moment the order was placed.
type Item struct {
	ID        uuid.UUID       `db:"order_item_id"`
	OrderID   uuid.UUID       `db:"order_id"`
	ProductID uuid.UUID       `db:"product_id"`
	Price     decimal.Decimal `db:"price"`
	Quantity  int             `db:"quantity"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderRepository interface {
	NextID() (uuid.UUID, error)
	Create(ctx context.Context, order *Order) error
	Find(ctx context.Context, id uuid.UUID) (*Order, error)
}
