package rabbit

import (
	"context"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
)

// Handler processes one delivery. A returned error nacks the message without
// requeueing it.
type Handler func(ctx context.Context, d amqp.Delivery) error

type Consumer struct {
	ch     *amqp.Channel
	queue  string
	logger observability.Logger
}

// NewConsumer declares queue and binds it to the events exchange for every
// routing pattern given.
func NewConsumer(conn *amqp.Connection, queue string, logger observability.Logger, patterns ...string) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareExchange(ch); err != nil {
		return nil, errors.Wrap(err, "declare exchange")
	}
	_, err = ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "declare queue")
	}
	for _, pattern := range patterns {
		if err := ch.QueueBind(queue, pattern, Exchange, false, nil); err != nil {
			return nil, errors.Wrapf(err, "bind %s", pattern)
		}
	}
	return &Consumer{ch: ch, queue: queue, logger: logger}, nil
}

func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

// ErrDeliveriesClosed means the broker closed the channel under a running
// consumer, usually because the connection dropped.
var ErrDeliveriesClosed = errors.New("deliveries channel closed")

// Run feeds deliveries to h until ctx is done or the channel closes. Only the
// first case returns nil.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	deliveries, err := c.Consume(ctx)
	if err != nil {
		return errors.Wrap(err, "consume")
	}
	return c.drain(ctx, deliveries, h)
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			if err := h(ctx, d); err != nil {
				c.logger.WithField("routing_key", d.RoutingKey).Error("handle delivery: ", err)
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
