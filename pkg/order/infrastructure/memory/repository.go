package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"orderservice/pkg/order/domain/model"
)

type customerRepository struct {
	scope
}

func (r *customerRepository) NextID() (uuid.UUID, error) { return uuid.NewRandom() }

func (r *customerRepository) Create(_ context.Context, customer *model.Customer) error {
	return r.with(func(st *state) error {
		if _, exists := st.customers[customer.ID]; exists {
			return errors.Errorf("customer %s already exists", customer.ID)
		}
		for _, stored := range st.customers {
			if stored.Email == customer.Email {
				return model.ErrEmailTaken
			}
		}
		st.customers[customer.ID] = *customer
		return nil
	})
}

func (r *customerRepository) Find(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	err := r.with(func(st *state) error {
		stored, ok := st.customers[id]
		if !ok {
			return model.ErrCustomerNotFound
		}
		customer = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) FindByEmail(_ context.Context, email string) (*model.Customer, error) {
	var customer model.Customer
	err := r.with(func(st *state) error {
		for _, stored := range st.customers {
			if stored.Email == email {
				customer = stored
				return nil
			}
		}
		return model.ErrCustomerNotFound
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

type productRepository struct {
	scope
}

func (r *productRepository) NextID() (uuid.UUID, error) { return uuid.NewRandom() }

func (r *productRepository) Create(_ context.Context, product *model.Product) error {
	return r.with(func(st *state) error {
		if _, exists := st.products[product.ID]; exists {
			return errors.Errorf("product %s already exists", product.ID)
		}
		for _, stored := range st.products {
			if stored.Name == product.Name {
				return model.ErrProductNameTaken
			}
		}
		st.products[product.ID] = *product
		return nil
	})
}

func (r *productRepository) Update(_ context.Context, product *model.Product) error {
	return r.with(func(st *state) error {
		if _, exists := st.products[product.ID]; !exists {
			return model.ErrProductNotFound
		}
		st.products[product.ID] = *product
		return nil
	})
}

func (r *productRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.with(func(st *state) error {
		stored, ok := st.products[id]
		if !ok {
			return model.ErrProductNotFound
		}
		product = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindByName(_ context.Context, name string) (*model.Product, error) {
	var product model.Product
	err := r.with(func(st *state) error {
		for _, stored := range st.products {
			if stored.Name == name {
				product = stored
				return nil
			}
		}
		return model.ErrProductNotFound
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindAllByID(_ context.Context, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.with(func(st *state) error {
		seen := make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if stored, ok := st.products[id]; ok {
				products = append(products, stored)
			}
		}
		return nil
	})
	return products, err
}

func (r *productRepository) UpdateQuantity(_ context.Context, changes []model.QuantityChange) error {
	sorted := append([]model.QuantityChange(nil), changes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	now := time.Now().UTC()
	return r.with(func(st *state) error {
		updated := make(map[uuid.UUID]model.Product, len(sorted))
		for _, change := range sorted {
			product, ok := updated[change.ProductID]
			if !ok {
				product, ok = st.products[change.ProductID]
			}
			if !ok || product.Quantity < change.Quantity {
				return errors.Wrapf(model.ErrInsufficientStock, "product %s", change.ProductID)
			}
			product.Quantity -= change.Quantity
			product.UpdatedAt = now
			updated[change.ProductID] = product
		}
		for id, product := range updated {
			st.products[id] = product
		}
		return nil
	})
}

type orderRepository struct {
	scope
}

func (r *orderRepository) NextID() (uuid.UUID, error) { return uuid.NewRandom() }

func (r *orderRepository) Create(_ context.Context, order *model.Order) error {
	return r.with(func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return errors.Errorf("order %s already exists", order.ID)
		}
		stored := *order
		stored.Items = append([]model.Item(nil), order.Items...)
		st.orders[order.ID] = stored
		return nil
	})
}

func (r *orderRepository) Find(_ context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := r.with(func(st *state) error {
		stored, ok := st.orders[id]
		if !ok {
			return model.ErrOrderNotFound
		}
		order = stored
		order.Items = append([]model.Item(nil), stored.Items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}
