package tests

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderservice/pkg/order/domain/model"
	"orderservice/pkg/order/domain/service"
)

func TestRegisterCustomer(t *testing.T) {
	ctx := context.Background()
	f := setup(t, service.OrderPolicy{})

	t.Run("Success", func(t *testing.T) {
		customer, err := f.customers.RegisterCustomer(ctx, "John", " John@Example.com ")
		require.NoError(t, err)
		assert.Equal(t, "john@example.com", customer.Email)

		found, err := f.customers.FindCustomer(ctx, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, customer.Name, found.Name)
	})

	t.Run("Fail on taken email", func(t *testing.T) {
		_, err := f.customers.RegisterCustomer(ctx, "Other John", "john@example.com")
		assert.ErrorIs(t, err, model.ErrEmailTaken)
	})

	t.Run("Fail on invalid data", func(t *testing.T) {
		_, err := f.customers.RegisterCustomer(ctx, "", "a@example.com")
		assert.ErrorIs(t, err, service.ErrInvalidCustomerData)

		_, err = f.customers.RegisterCustomer(ctx, "Ann", "not-an-email")
		assert.ErrorIs(t, err, service.ErrInvalidCustomerData)
	})
}

func TestFindCustomer(t *testing.T) {
	f := setup(t, service.OrderPolicy{})

	_, err := f.customers.FindCustomer(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrCustomerNotFound)
}
