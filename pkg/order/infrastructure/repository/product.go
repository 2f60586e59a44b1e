package repository

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"orderservice/pkg/order/domain/model"
)

const productColumns = `product_id, name, price, quantity, created_at, updated_at`

type productRepository struct {
	ext sqlx.ExtContext
}

func (r *productRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	_, err := r.ext.ExecContext(ctx, r.ext.Rebind(
		`INSERT INTO product (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
	), product.ID, product.Name, product.Price, product.Quantity, product.CreatedAt, product.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrProductNameTaken
	}
	return errors.Wrap(err, "failed to insert product")
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	result, err := r.ext.ExecContext(ctx, r.ext.Rebind(
		`UPDATE product SET name = ?, price = ?, quantity = ?, updated_at = ? WHERE product_id = ?`,
	), product.Name, product.Price, product.Quantity, product.UpdatedAt, product.ID)
	if isUniqueViolation(err) {
		return model.ErrProductNameTaken
	}
	if err != nil {
		return errors.Wrap(err, "failed to update product")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if affected == 0 {
		return model.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM product WHERE product_id = ?`, id)
}

func (r *productRepository) FindByName(ctx context.Context, name string) (*model.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM product WHERE name = ?`, name)
}

func (r *productRepository) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM product WHERE product_id IN (?)`, keys)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var products []model.Product
	if err := sqlx.SelectContext(ctx, r.ext, &products, r.ext.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to select products")
	}
	return products, nil
}

// UpdateQuantity decrements stock with a conditional update per product, in
// ascending id order so concurrent orders lock rows in the same sequence.
func (r *productRepository) UpdateQuantity(ctx context.Context, changes []model.QuantityChange) error {
	sorted := append([]model.QuantityChange(nil), changes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	query := r.ext.Rebind(`UPDATE product SET quantity = quantity - ?, updated_at = ? WHERE product_id = ? AND quantity >= ?`)
	now := time.Now().UTC()
	for _, change := range sorted {
		result, err := r.ext.ExecContext(ctx, query, change.Quantity, now, change.ProductID, change.Quantity)
		if err != nil {
			return errors.Wrapf(err, "failed to decrement stock of product %s", change.ProductID)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if affected == 0 {
			return errors.Wrapf(model.ErrInsufficientStock, "product %s", change.ProductID)
		}
	}
	return nil
}

func (r *productRepository) findOne(ctx context.Context, query string, args ...interface{}) (*model.Product, error) {
	var product model.Product
	err := sqlx.GetContext(ctx, r.ext, &product, r.ext.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrProductNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select product")
	}
	return &product, nil
}
