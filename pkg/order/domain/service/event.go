package service

import (
	"context"

	"orderservice/pkg/order/domain/model"
)

type Event interface {
	Type() string
}

type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// RepositoryProvider gives access to the repositories of one storage scope:
// either the plain connection or a running transaction.
type RepositoryProvider interface {
	CustomerRepository() model.CustomerRepository
	ProductRepository() model.ProductRepository
	OrderRepository() model.OrderRepository
	EventDispatcher() EventDispatcher
}

// UnitOfWork runs fn atomically. Everything written through the provider
// is committed when fn returns nil and discarded otherwise.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(provider RepositoryProvider) error) error
}
