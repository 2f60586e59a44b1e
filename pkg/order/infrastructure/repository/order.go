package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"orderservice/pkg/order/domain/model"
)

type orderRepository struct {
	ext sqlx.ExtContext
}

func (r *orderRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

// Create inserts the order and its items. Atomicity comes from the
// surrounding unit of work.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	_, err := r.ext.ExecContext(ctx, r.ext.Rebind(
		`INSERT INTO customer_order (order_id, customer_id, total, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
	), order.ID, order.CustomerID, order.Total, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	query := r.ext.Rebind(`INSERT INTO order_item (order_item_id, order_id, product_id, price, quantity) VALUES (?, ?, ?, ?, ?)`)
	for _, item := range order.Items {
		_, err := r.ext.ExecContext(ctx, query, item.ID, order.ID, item.ProductID, item.Price, item.Quantity)
		if err != nil {
			return errors.Wrapf(err, "failed to insert item of product %s", item.ProductID)
		}
	}
	return nil
}

func (r *orderRepository) Find(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := sqlx.GetContext(ctx, r.ext, &order, r.ext.Rebind(
		`SELECT order_id, customer_id, total, created_at, updated_at FROM customer_order WHERE order_id = ?`,
	), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select order")
	}

	err = sqlx.SelectContext(ctx, r.ext, &order.Items, r.ext.Rebind(
		`SELECT order_item_id, order_id, product_id, price, quantity FROM order_item WHERE order_id = ? ORDER BY product_id`,
	), id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select order items")
	}
	return &order, nil
}
