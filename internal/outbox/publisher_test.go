package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-offer-pricing/internal/adapters/crdb"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
)

type fakeStore struct {
	pending   []crdb.OutboxRecord
	published map[uuid.UUID]time.Time
}

func (s *fakeStore) GetUnpublishedOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error) {
	var out []crdb.OutboxRecord
	for _, rec := range s.pending {
		if _, done := s.published[rec.ID]; !done && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	s.published[id] = publishedAt
	return nil
}

type fakeBroker struct {
	failKey string
	sent    []amqp.Publishing
	keys    []string
}

func (b *fakeBroker) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	if key == b.failKey {
		return errors.New("channel closed")
	}
	b.keys = append(b.keys, key)
	b.sent = append(b.sent, msg)
	return nil
}

func record(eventType string) crdb.OutboxRecord {
	return crdb.OutboxRecord{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   []byte(`{}`),
		DedupeKey: uuid.NewString(),
		CreatedAt: time.Now().Add(-time.Minute),
	}
}

func TestPublishBatch(t *testing.T) {
	store := &fakeStore{published: map[uuid.UUID]time.Time{}}
	for i := 0; i < 12; i++ {
		store.pending = append(store.pending, record("offer.created"))
	}
	broker := &fakeBroker{}
	p := NewPublisher(store, broker, observability.NewDiscardLogger())

	n, err := p.PublishBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != batchSize {
		t.Errorf("expected %d published, got %d", batchSize, n)
	}
	if broker.sent[0].MessageId != store.pending[0].DedupeKey {
		t.Error("expected the dedupe key as message id")
	}

	n, err = p.PublishBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected the remaining 2 published, got %d", n)
	}
}

func TestPublishBatch_FailedRowStaysPending(t *testing.T) {
	store := &fakeStore{published: map[uuid.UUID]time.Time{}}
	bad := record("offer.deleted")
	good := record("offer.created")
	store.pending = []crdb.OutboxRecord{bad, good}
	broker := &fakeBroker{failKey: "offer.deleted"}
	p := NewPublisher(store, broker, observability.NewDiscardLogger())

	n, err := p.PublishBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 published, got %d", n)
	}
	if _, ok := store.published[bad.ID]; ok {
		t.Error("expected the failed row to stay pending")
	}
	if _, ok := store.published[good.ID]; !ok {
		t.Error("expected the good row to be marked published")
	}
}
