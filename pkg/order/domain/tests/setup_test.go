package tests

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"orderservice/pkg/order/domain/service"
	"orderservice/pkg/order/infrastructure/memory"
	"orderservice/pkg/order/infrastructure/outbox"
)

var errDispatchFailed = errors.New("dispatch failed")

type fixture struct {
	store     *memory.Store
	orders    service.OrderService
	products  service.ProductService
	customers service.CustomerService
	logs      *test.Hook
}

func setup(t *testing.T, policy service.OrderPolicy) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger, hook := test.NewNullLogger()
	return &fixture{
		store:     store,
		orders:    service.NewOrderService(store.Provider(), store, policy, logger),
		products:  service.NewProductService(store.Provider(), store),
		customers: service.NewCustomerService(store.Provider(), store),
		logs:      hook,
	}
}

func (f *fixture) customer(t *testing.T) uuid.UUID {
	t.Helper()
	c, err := f.customers.RegisterCustomer(context.Background(), "Jane Doe", uuid.NewString()+"@example.com")
	require.NoError(t, err)
	return c.ID
}

func (f *fixture) product(t *testing.T, price string, quantity int) uuid.UUID {
	t.Helper()
	p, err := f.products.CreateProduct(context.Background(), "product-"+uuid.NewString(), decimal.RequireFromString(price), quantity)
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	p, err := f.products.FindProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) pending(t *testing.T) []outbox.Record {
	t.Helper()
	records, err := f.store.FetchPending(context.Background(), 1000)
	require.NoError(t, err)
	return records
}

// failingUnitOfWork runs the store's unit of work but fails every event
// dispatch, so the whole unit has to roll back.
type failingUnitOfWork struct {
	store *memory.Store
}

func (u failingUnitOfWork) Execute(ctx context.Context, fn func(provider service.RepositoryProvider) error) error {
	return u.store.Execute(ctx, func(provider service.RepositoryProvider) error {
		return fn(failingProvider{RepositoryProvider: provider})
	})
}

type failingProvider struct {
	service.RepositoryProvider
}

func (p failingProvider) EventDispatcher() service.EventDispatcher { return failingDispatcher{} }

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, service.Event) error { return errDispatchFailed }
