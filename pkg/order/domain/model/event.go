package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderCreated struct {
	OrderID    uuid.UUID       `json:"order_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
	Items      []OrderedItem   `json:"items"`
}

type OrderedItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (e OrderCreated) Type() string { return "OrderCreated" }

type ProductCreated struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
}

func (e ProductCreated) Type() string { return "ProductCreated" }

type ProductPriceChanged struct {
	ProductID uuid.UUID       `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
}

func (e ProductPriceChanged) Type() string { return "ProductPriceChanged" }

type ProductStockChanged struct {
	ProductID    uuid.UUID `json:"product_id"`
	ChangeAmount int       `json:"change_amount"`
	NewQuantity  int       `json:"new_quantity"`
}

func (e ProductStockChanged) Type() string { return "ProductStockChanged" }

type CustomerRegistered struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Email      string    `json:"email"`
}

func (e CustomerRegistered) Type() string { return "CustomerRegistered" }
