package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func offersKey(eventID uuid.UUID) string {
	return "offers:" + eventID.String()
}

// GetOffers returns the cached offer list for an event. ok is false on a miss.
func (c *Cache) GetOffers(ctx context.Context, eventID uuid.UUID) (offers []domain.Offer, ok bool, err error) {
	val, err := c.client.Get(ctx, offersKey(eventID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get offers")
	}
	if err := json.Unmarshal(val, &offers); err != nil {
		return nil, false, errors.Wrap(err, "decode offers")
	}
	return offers, true, nil
}

func (c *Cache) SetOffers(ctx context.Context, eventID uuid.UUID, offers []domain.Offer) error {
	data, err := json.Marshal(offers)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, offersKey(eventID), data, c.ttl).Err()
}

func (c *Cache) InvalidateOffers(ctx context.Context, eventID uuid.UUID) error {
	return c.client.Del(ctx, offersKey(eventID)).Err()
}
