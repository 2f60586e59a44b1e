package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"orderservice/pkg/order/domain/service"
)

type Record struct {
	ID        uuid.UUID       `db:"outbox_id" json:"id"`
	EventType string          `db:"event_type" json:"event_type"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	SentAt    *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
}

// Writer appends records inside the caller's storage scope.
type Writer interface {
	Append(ctx context.Context, record Record) error
}

// Storage is the relay's view of the outbox.
type Storage interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}

func NewDispatcher(writer Writer) service.EventDispatcher {
	return &dispatcher{writer: writer}
}

type dispatcher struct {
	writer Writer
}

func (d *dispatcher) Dispatch(ctx context.Context, event service.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", event.Type())
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return errors.WithStack(err)
	}

	return d.writer.Append(ctx, Record{
		ID:        id,
		EventType: event.Type(),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
}
