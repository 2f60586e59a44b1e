package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"orderservice/pkg/order/domain/model"
)

const customerColumns = `customer_id, name, email, created_at, updated_at`

type customerRepository struct {
	ext sqlx.ExtContext
}

func (r *customerRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *customerRepository) Create(ctx context.Context, customer *model.Customer) error {
	_, err := r.ext.ExecContext(ctx, r.ext.Rebind(
		`INSERT INTO customer (`+customerColumns+`) VALUES (?, ?, ?, ?, ?)`,
	), customer.ID, customer.Name, customer.Email, customer.CreatedAt, customer.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrEmailTaken
	}
	return errors.Wrap(err, "failed to insert customer")
}

func (r *customerRepository) Find(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	return r.findOne(ctx, `SELECT `+customerColumns+` FROM customer WHERE customer_id = ?`, id)
}

func (r *customerRepository) FindByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return r.findOne(ctx, `SELECT `+customerColumns+` FROM customer WHERE email = ?`, email)
}

func (r *customerRepository) findOne(ctx context.Context, query string, args ...interface{}) (*model.Customer, error) {
	var customer model.Customer
	err := sqlx.GetContext(ctx, r.ext, &customer, r.ext.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCustomerNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select customer")
	}
	return &customer, nil
}
