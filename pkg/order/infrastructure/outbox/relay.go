package outbox

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, record Record) error
}

type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Relay moves pending outbox records to the broker. Delivery is
// at-least-once: a record published but not marked sent is published again
// on the next tick.
type Relay struct {
	storage   Storage
	publisher Publisher
	config    RelayConfig
	logger    log.FieldLogger
}

func NewRelay(storage Storage, publisher Publisher, config RelayConfig, logger log.FieldLogger) *Relay {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Relay{storage: storage, publisher: publisher, config: config, logger: logger}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.logger.WithError(err).Error("failed to process outbox batch")
			}
		}
	}
}

// ProcessBatch publishes one batch and returns how many records were sent.
// It stops at the first publish failure so records keep their order.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	records, err := r.storage.FetchPending(ctx, r.config.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, record := range records {
		if err := r.publisher.Publish(ctx, record); err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"recordID":  record.ID,
				"eventType": record.EventType,
			}).Warn("failed to publish outbox record, will retry")
			return sent, nil
		}
		if err := r.storage.MarkSent(ctx, record.ID, time.Now().UTC()); err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		r.logger.WithField("count", sent).Debug("outbox records published")
	}
	return sent, nil
}
