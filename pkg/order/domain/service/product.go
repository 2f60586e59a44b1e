package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"orderservice/pkg/order/domain/model"
)

// priceScale is the number of decimal places a stored price keeps.
const priceScale = 2

var (
	ErrInvalidProduct       = errors.New("product name is required, price must be non-negative with at most two decimal places and stock cannot be negative")
	ErrInvalidPrice         = errors.New("price must be non-negative with at most two decimal places")
	ErrInvalidStockQuantity = errors.New("stock quantity must be a positive number")
)

type ProductService interface {
	CreateProduct(ctx context.Context, name string, price decimal.Decimal, quantity int) (*model.Product, error)
	ChangeProductPrice(ctx context.Context, productID uuid.UUID, newPrice decimal.Decimal) error
	ReceiveStock(ctx context.Context, productID uuid.UUID, quantity int) error
	FindProduct(ctx context.Context, productID uuid.UUID) (*model.Product, error)
}

func NewProductService(repos RepositoryProvider, uow UnitOfWork) ProductService {
	return &productService{repos: repos, uow: uow}
}

type productService struct {
	repos RepositoryProvider
	uow   UnitOfWork
}

func (s *productService) CreateProduct(ctx context.Context, name string, price decimal.Decimal, quantity int) (*model.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" || !validPrice(price) || quantity < 0 {
		return nil, ErrInvalidProduct
	}

	var product *model.Product
	err := s.uow.Execute(ctx, func(provider RepositoryProvider) error {
		repo := provider.ProductRepository()
		if _, err := repo.FindByName(ctx, name); err == nil {
			return model.ErrProductNameTaken
		} else if !errors.Is(err, model.ErrProductNotFound) {
			return err
		}

		productID, err := repo.NextID()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		product = &model.Product{
			ID:        productID,
			Name:      name,
			Price:     price,
			Quantity:  quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.Create(ctx, product); err != nil {
			return err
		}

		return provider.EventDispatcher().Dispatch(ctx, model.ProductCreated{ProductID: productID, Name: name})
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) ChangeProductPrice(ctx context.Context, productID uuid.UUID, newPrice decimal.Decimal) error {
	if !validPrice(newPrice) {
		return ErrInvalidPrice
	}

	return s.executeOnProduct(ctx, productID, func(product *model.Product) (Event, error) {
		oldPrice := product.Price
		product.Price = newPrice
		return model.ProductPriceChanged{ProductID: productID, OldPrice: oldPrice, NewPrice: newPrice}, nil
	})
}

func (s *productService) ReceiveStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidStockQuantity
	}

	return s.executeOnProduct(ctx, productID, func(product *model.Product) (Event, error) {
		product.Quantity += quantity
		return model.ProductStockChanged{ProductID: productID, ChangeAmount: quantity, NewQuantity: product.Quantity}, nil
	})
}

func (s *productService) FindProduct(ctx context.Context, productID uuid.UUID) (*model.Product, error) {
	return s.repos.ProductRepository().FindByID(ctx, productID)
}

func (s *productService) executeOnProduct(ctx context.Context, productID uuid.UUID, action func(product *model.Product) (Event, error)) error {
	return s.uow.Execute(ctx, func(provider RepositoryProvider) error {
		repo := provider.ProductRepository()
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			return err
		}

		event, err := action(product)
		if err != nil {
			return err
		}

		product.UpdatedAt = time.Now().UTC()
		if err := repo.Update(ctx, product); err != nil {
			return err
		}

		return provider.EventDispatcher().Dispatch(ctx, event)
	})
}

func validPrice(price decimal.Decimal) bool {
	return !price.IsNegative() && price.Equal(price.Truncate(priceScale))
}
