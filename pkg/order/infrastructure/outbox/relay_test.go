package outbox_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"orderservice/pkg/order/domain/model"
	"orderservice/pkg/order/domain/service"
	"orderservice/pkg/order/infrastructure/memory"
	"orderservice/pkg/order/infrastructure/outbox"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []outbox.Record
	failOn    map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, record outbox.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[record.EventType] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, record)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func dispatch(t *testing.T, store *memory.Store, events ...service.Event) {
	t.Helper()
	err := store.Execute(context.Background(), func(provider service.RepositoryProvider) error {
		for _, event := range events {
			if err := provider.EventDispatcher().Dispatch(context.Background(), event); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	t.Run("Publishes and marks records sent", func(t *testing.T) {
		store := memory.NewStore()
		dispatch(t, store,
			model.ProductCreated{ProductID: uuid.New(), Name: "a"},
			model.CustomerRegistered{CustomerID: uuid.New(), Email: "a@example.com"},
		)
		publisher := &recordingPublisher{}
		relay := outbox.NewRelay(store, publisher, outbox.RelayConfig{}, logger)

		sent, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, sent)
		assert.Equal(t, "ProductCreated", publisher.published[0].EventType)
		assert.Equal(t, "CustomerRegistered", publisher.published[1].EventType)

		pending, err := store.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		sent, err = relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent)
	})

	t.Run("Respects batch size", func(t *testing.T) {
		store := memory.NewStore()
		dispatch(t, store,
			model.ProductCreated{ProductID: uuid.New(), Name: "a"},
			model.ProductCreated{ProductID: uuid.New(), Name: "b"},
			model.ProductCreated{ProductID: uuid.New(), Name: "c"},
		)
		relay := outbox.NewRelay(store, &recordingPublisher{}, outbox.RelayConfig{BatchSize: 2}, logger)

		sent, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, sent)

		pending, err := store.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("Stops at first publish failure", func(t *testing.T) {
		store := memory.NewStore()
		dispatch(t, store,
			model.ProductCreated{ProductID: uuid.New(), Name: "a"},
			model.CustomerRegistered{CustomerID: uuid.New(), Email: "a@example.com"},
			model.ProductCreated{ProductID: uuid.New(), Name: "b"},
		)
		publisher := &recordingPublisher{failOn: map[string]bool{"CustomerRegistered": true}}
		relay := outbox.NewRelay(store, publisher, outbox.RelayConfig{}, logger)

		sent, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)

		pending, err := store.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "CustomerRegistered", pending[0].EventType)
	})
}

func TestRelayRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := memory.NewStore()
	dispatch(t, store, model.ProductCreated{ProductID: uuid.New(), Name: "a"})
	publisher := &recordingPublisher{}
	relay := outbox.NewRelay(store, publisher, outbox.RelayConfig{Interval: 10 * time.Millisecond}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestDispatcherPayload(t *testing.T) {
	store := memory.NewStore()
	productID := uuid.New()
	dispatch(t, store, model.ProductStockChanged{ProductID: productID, ChangeAmount: 3, NewQuantity: 8})

	pending, err := store.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEqual(t, uuid.Nil, pending[0].ID)
	assert.Nil(t, pending[0].SentAt)
	assert.JSONEq(t, `{"product_id":"`+productID.String()+`","change_amount":3,"new_quantity":8}`, string(pending[0].Payload))
}

func TestDispatcherKeepsZeroQuantity(t *testing.T) {
	store := memory.NewStore()
	productID := uuid.New()
	dispatch(t, store, model.ProductStockChanged{ProductID: productID, ChangeAmount: 0, NewQuantity: 0})

	pending, err := store.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"product_id":"`+productID.String()+`","change_amount":0,"new_quantity":0}`, string(pending[0].Payload))
}
