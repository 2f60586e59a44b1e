package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductNameTaken  = errors.New("product name is already taken")
	ErrInsufficientStock = errors.New("insufficient stock quantity")
)

type Product struct {
	ID        uuid.UUID       `db:"product_id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Quantity  int             `db:"quantity"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// QuantityChange is a requested decrement of a product's stock.
type QuantityChange struct {
	ProductID uuid.UUID
	Quantity  int
}

type ProductRepository interface {
	NextID() (uuid.UUID, error)
	Create(ctx context.Context, product *Product) error
	Update(ctx context.Context, product *Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByName(ctx context.Context, name string) (*Product, error)
	// FindAllByID returns the products matching ids; unknown ids are skipped.
	FindAllByID(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	// UpdateQuantity subtracts every change from the stored quantity.
	// A change that would drive quantity below zero fails with ErrInsufficientStock
	// and leaves that row untouched.
	UpdateQuantity(ctx context.Context, changes []QuantityChange) error
}
