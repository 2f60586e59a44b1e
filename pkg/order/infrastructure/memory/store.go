package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"orderservice/pkg/order/domain/model"
	"orderservice/pkg/order/domain/service"
	"orderservice/pkg/order/infrastructure/outbox"
)

// Store keeps every table in process memory. A unit of work runs against a
// copy of the tables under the store lock and replaces them on success.
type Store struct {
	mu   sync.Mutex
	data *state
}

type state struct {
	customers map[uuid.UUID]model.Customer
	products  map[uuid.UUID]model.Product
	orders    map[uuid.UUID]model.Order
	outbox    []outbox.Record
}

func NewStore() *Store {
	return &Store{data: &state{
		customers: make(map[uuid.UUID]model.Customer),
		products:  make(map[uuid.UUID]model.Product),
		orders:    make(map[uuid.UUID]model.Order),
	}}
}

// Provider returns repositories that lock the store per call.
func (s *Store) Provider() service.RepositoryProvider {
	return newProvider(scope{store: s})
}

func (s *Store) Execute(ctx context.Context, fn func(provider service.RepositoryProvider) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(newProvider(scope{store: s, tx: working})); err != nil {
		return err
	}
	s.data = working
	return nil
}

func (s *Store) FetchPending(_ context.Context, limit int) ([]outbox.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []outbox.Record
	for _, record := range s.data.outbox {
		if record.SentAt != nil {
			continue
		}
		pending = append(pending, record)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.outbox {
		if s.data.outbox[i].ID == id {
			at := sentAt
			s.data.outbox[i].SentAt = &at
			return nil
		}
	}
	return nil
}

func (st *state) clone() *state {
	c := &state{
		customers: make(map[uuid.UUID]model.Customer, len(st.customers)),
		products:  make(map[uuid.UUID]model.Product, len(st.products)),
		orders:    make(map[uuid.UUID]model.Order, len(st.orders)),
		outbox:    append([]outbox.Record(nil), st.outbox...),
	}
	for id, customer := range st.customers {
		c.customers[id] = customer
	}
	for id, product := range st.products {
		c.products[id] = product
	}
	for id, order := range st.orders {
		c.orders[id] = order
	}
	return c
}

// scope runs table access either inside a unit of work (tx set) or under
// the store lock.
type scope struct {
	store *Store
	tx    *state
}

func (s scope) with(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return fn(s.store.data)
}

type provider struct {
	customers  *customerRepository
	products   *productRepository
	orders     *orderRepository
	dispatcher service.EventDispatcher
}

func newProvider(sc scope) *provider {
	return &provider{
		customers:  &customerRepository{scope: sc},
		products:   &productRepository{scope: sc},
		orders:     &orderRepository{scope: sc},
		dispatcher: outbox.NewDispatcher(&outboxWriter{scope: sc}),
	}
}

func (p *provider) CustomerRepository() model.CustomerRepository { return p.customers }
func (p *provider) ProductRepository() model.ProductRepository   { return p.products }
func (p *provider) OrderRepository() model.OrderRepository       { return p.orders }
func (p *provider) EventDispatcher() service.EventDispatcher     { return p.dispatcher }

type outboxWriter struct {
	scope
}

func (w *outboxWriter) Append(_ context.Context, record outbox.Record) error {
	return w.with(func(st *state) error {
		st.outbox = append(st.outbox, record)
		return nil
	})
}
