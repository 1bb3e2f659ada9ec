package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-offer-pricing/internal/adapters/crdb"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
)

const batchSize = 10

type Store interface {
	GetUnpublishedOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher relays committed outbox rows to the broker. Delivery is at least
// once; consumers dedupe on the message id.
type Publisher struct {
	repo      Store
	rabbitPub Broker
	logger    observability.Logger
	now       func() time.Time
}

func NewPublisher(repo Store, rabbitPub Broker, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger, now: time.Now}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("outbox batch failed: ", err)
			}
		}
	}
}

// PublishBatch sends one batch of pending rows and returns how many were
// marked published. A row that fails to publish stays pending for the next tick.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		observability.OutboxLag.Set(0)
		return 0, nil
	}
	observability.OutboxLag.Set(p.now().Sub(records[0].CreatedAt).Seconds())

	published := 0
	for _, rec := range records {
		logger := p.logger.WithField("outbox_id", rec.ID).WithField("event_type", rec.EventType)
		msg := amqp.Publishing{
			MessageId:    rec.DedupeKey,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    rec.CreatedAt,
			Body:         rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			observability.RabbitPublishRetries.Inc()
			logger.Warn("publish outbox record: ", err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, p.now()); err != nil {
			logger.Error("mark outbox record published: ", err)
			continue
		}
		published++
	}
	return published, nil
}
