package outbox

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const exchangeType = "topic"

type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewRabbitMQPublisher dials the broker, retrying with exponential backoff
// until maxWait elapses, and declares a durable topic exchange.
func NewRabbitMQPublisher(ctx context.Context, url, exchange string, maxWait time.Duration, logger log.FieldLogger) (*RabbitMQPublisher, error) {
	var conn *amqp.Connection
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxWait

	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = amqp.Dial(url)
		return err
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		logger.WithError(err).WithField("retryIn", next).Warn("failed to connect to RabbitMQ")
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open a channel")
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "failed to declare exchange")
	}

	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, record Record) error {
	err := p.channel.PublishWithContext(ctx,
		p.exchange,       // exchange
		record.EventType, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			MessageId:    record.ID.String(),
			Type:         record.EventType,
			Timestamp:    record.CreatedAt,
			ContentType:  "application/json",
			Body:         record.Payload,
			DeliveryMode: amqp.Persistent,
		})
	return errors.Wrapf(err, "failed to publish %s", record.ID)
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(p.conn.Close())
}

// LogPublisher writes records to the log. Used when no broker is configured.
type LogPublisher struct {
	Logger log.FieldLogger
}

func (p LogPublisher) Publish(_ context.Context, record Record) error {
	p.Logger.WithFields(log.Fields{
		"recordID":  record.ID,
		"eventType": record.EventType,
		"payload":   string(record.Payload),
	}).Info("event published")
	return nil
}
