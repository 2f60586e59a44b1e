package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderservice/pkg/order/domain/model"
	"orderservice/pkg/order/domain/service"
)

func addProduct(t *testing.T, store *Store, name string, quantity int) model.Product {
	t.Helper()
	product := model.Product{ID: uuid.New(), Name: name, Price: decimal.NewFromInt(1), Quantity: quantity}
	require.NoError(t, store.Provider().ProductRepository().Create(context.Background(), &product))
	return product
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Provider().ProductRepository()
	a := addProduct(t, store, "a", 5)
	b := addProduct(t, store, "b", 2)

	t.Run("FindAllByID drops unknown and repeated ids", func(t *testing.T) {
		products, err := repo.FindAllByID(ctx, []uuid.UUID{b.ID, uuid.New(), a.ID, b.ID})
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, b.ID, products[0].ID)
		assert.Equal(t, a.ID, products[1].ID)
	})

	t.Run("FindByName", func(t *testing.T) {
		found, err := repo.FindByName(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)

		_, err = repo.FindByName(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrProductNotFound)
	})

	t.Run("Create rejects taken name", func(t *testing.T) {
		err := repo.Create(ctx, &model.Product{ID: uuid.New(), Name: "a"})
		assert.ErrorIs(t, err, model.ErrProductNameTaken)
	})

	t.Run("UpdateQuantity is all or nothing", func(t *testing.T) {
		err := repo.UpdateQuantity(ctx, []model.QuantityChange{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: b.ID, Quantity: 3},
		})
		assert.ErrorIs(t, err, model.ErrInsufficientStock)

		found, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, found.Quantity)
	})

	t.Run("UpdateQuantity decrements", func(t *testing.T) {
		before := time.Now().UTC()
		require.NoError(t, repo.UpdateQuantity(ctx, []model.QuantityChange{
			{ProductID: a.ID, Quantity: 5},
			{ProductID: b.ID, Quantity: 1},
		}))

		found, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, found.Quantity)
		assert.False(t, found.UpdatedAt.Before(before))
		found, err = repo.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, found.Quantity)
	})
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	errAbort := errors.New("abort")

	t.Run("Discards changes on error", func(t *testing.T) {
		store := NewStore()
		product := addProduct(t, store, "a", 5)

		err := store.Execute(ctx, func(provider service.RepositoryProvider) error {
			require.NoError(t, provider.ProductRepository().UpdateQuantity(ctx, []model.QuantityChange{{ProductID: product.ID, Quantity: 5}}))
			require.NoError(t, provider.EventDispatcher().Dispatch(ctx, model.ProductStockChanged{ProductID: product.ID, ChangeAmount: 5}))
			return errAbort
		})
		assert.ErrorIs(t, err, errAbort)

		found, err := store.Provider().ProductRepository().FindByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, found.Quantity)

		pending, err := store.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("Applies changes on success", func(t *testing.T) {
		store := NewStore()
		order := &model.Order{ID: uuid.New(), CustomerID: uuid.New(), Items: []model.Item{{ID: uuid.New(), Quantity: 1}}}

		require.NoError(t, store.Execute(ctx, func(provider service.RepositoryProvider) error {
			return provider.OrderRepository().Create(ctx, order)
		}))

		order.Items[0].Quantity = 100
		found, err := store.Provider().OrderRepository().Find(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, found.Items[0].Quantity)
	})

	t.Run("Fails on cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := NewStore().Execute(cancelled, func(service.RepositoryProvider) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCustomerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Provider().CustomerRepository()
	customer := &model.Customer{ID: uuid.New(), Name: "Jane", Email: "jane@example.com"}
	require.NoError(t, repo.Create(ctx, customer))

	found, err := repo.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, found.ID)

	err = repo.Create(ctx, &model.Customer{ID: uuid.New(), Email: "jane@example.com"})
	assert.ErrorIs(t, err, model.ErrEmailTaken)

	_, err = repo.Find(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrCustomerNotFound)
}
