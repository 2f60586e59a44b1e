package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"orderservice/pkg/order/domain/model"
)

var ErrInvalidCustomerData = errors.New("customer name and a valid email are required")

type CustomerService interface {
	RegisterCustomer(ctx context.Context, name, email string) (*model.Customer, error)
	FindCustomer(ctx context.Context, customerID uuid.UUID) (*model.Customer, error)
}

func NewCustomerService(repos RepositoryProvider, uow UnitOfWork) CustomerService {
	return &customerService{repos: repos, uow: uow}
}

type customerService struct {
	repos RepositoryProvider
	uow   UnitOfWork
}

func (s *customerService) RegisterCustomer(ctx context.Context, name, email string) (*model.Customer, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, ErrInvalidCustomerData
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidCustomerData
	}

	var customer *model.Customer
	err := s.uow.Execute(ctx, func(provider RepositoryProvider) error {
		repo := provider.CustomerRepository()
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return model.ErrEmailTaken
		} else if !errors.Is(err, model.ErrCustomerNotFound) {
			return err
		}

		customerID, err := repo.NextID()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		customer = &model.Customer{
			ID:        customerID,
			Name:      name,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.Create(ctx, customer); err != nil {
			return err
		}

		return provider.EventDispatcher().Dispatch(ctx, model.CustomerRegistered{CustomerID: customerID, Email: email})
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *customerService) FindCustomer(ctx context.Context, customerID uuid.UUID) (*model.Customer, error) {
	return s.repos.CustomerRepository().Find(ctx, customerID)
}
