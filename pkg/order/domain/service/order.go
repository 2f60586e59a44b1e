package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"orderservice/pkg/order/domain/model"
)

var (
	ErrInvalidCustomer = errors.New("invalid customer")
	ErrInvalidProducts = errors.New("invalid products")
	ErrInvalidQuantity = errors.New("item quantity must be a positive number")
)

type RequestedItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// OrderPolicy tunes request validation.
type OrderPolicy struct {
	// AllowUnknownProducts drops requested product ids that do not resolve
	// instead of rejecting the whole request. The request still fails when
	// none of the ids resolve.
	AllowUnknownProducts bool
}

type OrderService interface {
	CreateOrder(ctx context.Context, customerID uuid.UUID, items []RequestedItem) (*model.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
}

func NewOrderService(repos RepositoryProvider, uow UnitOfWork, policy OrderPolicy, logger log.FieldLogger) OrderService {
	return &orderService{repos: repos, uow: uow, policy: policy, logger: logger}
}

type orderService struct {
	repos  RepositoryProvider
	uow    UnitOfWork
	policy OrderPolicy
	logger log.FieldLogger
}

func (s *orderService) CreateOrder(ctx context.Context, customerID uuid.UUID, items []RequestedItem) (*model.Order, error) {
	requested, err := mergeRequestedItems(items)
	if err != nil {
		return nil, err
	}

	customer, err := s.repos.CustomerRepository().Find(ctx, customerID)
	if err != nil {
		if errors.Is(err, model.ErrCustomerNotFound) {
			return nil, ErrInvalidCustomer
		}
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(requested))
	for _, item := range requested {
		ids = append(ids, item.ProductID)
	}
	stored, err := s.repos.ProductRepository().FindAllByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, ErrInvalidProducts
	}
	if !s.policy.AllowUnknownProducts && len(stored) != len(requested) {
		return nil, errors.Wrapf(ErrInvalidProducts, "%d of %d products not found", len(requested)-len(stored), len(requested))
	}

	orderItems := make([]model.Item, 0, len(stored))
	for _, product := range stored {
		item, ok := findRequestedItem(requested, product.ID)
		if !ok {
			return nil, errors.Wrapf(model.ErrProductNotFound, "product %s", product.ID)
		}
		if product.Quantity < item.Quantity {
			return nil, errors.Wrapf(model.ErrInsufficientStock, "product %s: %d requested, %d in stock", product.ID, item.Quantity, product.Quantity)
		}
		orderItems = append(orderItems, model.Item{
			ProductID: product.ID,
			Price:     product.Price,
			Quantity:  item.Quantity,
		})
	}

	var order *model.Order
	err = s.uow.Execute(ctx, func(provider RepositoryProvider) error {
		var err error
		order, err = s.createOrder(ctx, provider, customer.ID, orderItems)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(log.Fields{
		"orderID":    order.ID,
		"customerID": order.CustomerID,
		"items":      len(order.Items),
		"total":      order.Total.String(),
	}).Info("order created")
	return order, nil
}

func (s *orderService) FindOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	return s.repos.OrderRepository().Find(ctx, orderID)
}

func (s *orderService) createOrder(ctx context.Context, provider RepositoryProvider, customerID uuid.UUID, items []model.Item) (*model.Order, error) {
	orders := provider.OrderRepository()
	orderID, err := orders.NextID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID:         orderID,
		CustomerID: customerID,
		Items:      make([]model.Item, 0, len(items)),
		Total:      decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	changes := make([]model.QuantityChange, 0, len(items))
	for _, item := range items {
		item.ID, err = orders.NextID()
		if err != nil {
			return nil, err
		}
		item.OrderID = orderID
		order.Items = append(order.Items, item)
		order.Total = order.Total.Add(item.Subtotal())
		changes = append(changes, model.QuantityChange{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	// Stock must be decremented before items are inserted: item foreign
	// keys share-lock product rows.
	if err := provider.ProductRepository().UpdateQuantity(ctx, changes); err != nil {
		return nil, err
	}
	if err := orders.Create(ctx, order); err != nil {
		return nil, err
	}

	event := model.OrderCreated{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total,
		Items:      make([]model.OrderedItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, model.OrderedItem{ProductID: item.ProductID, Price: item.Price, Quantity: item.Quantity})
	}
	if err := provider.EventDispatcher().Dispatch(ctx, event); err != nil {
		return nil, err
	}
	return order, nil
}

// mergeRequestedItems folds repeated product ids into one line and returns
// the lines ordered by product id.
func mergeRequestedItems(items []RequestedItem) ([]RequestedItem, error) {
	if len(items) == 0 {
		return nil, errors.Wrap(ErrInvalidProducts, "no items requested")
	}

	quantities := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %s", item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	merged := make([]RequestedItem, 0, len(quantities))
	for productID, quantity := range quantities {
		merged = append(merged, RequestedItem{ProductID: productID, Quantity: quantity})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged, nil
}

func findRequestedItem(items []RequestedItem, productID uuid.UUID) (RequestedItem, bool) {
	for _, item := range items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return RequestedItem{}, false
}
