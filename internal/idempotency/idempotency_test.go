package idempotency_test

import (
	"context"
	"testing"
	"time"

	redisadapter "github.com/robertarktes/event-offer-pricing/internal/adapters/redis"
	"github.com/robertarktes/event-offer-pricing/internal/idempotency"
)

type memStore struct {
	data map[string]redisadapter.IdempResponse
	ttls map[string]time.Duration
}

func (m *memStore) Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error) {
	resp, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (m *memStore) Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error {
	m.data[key] = resp
	m.ttls[key] = ttl
	return nil
}

func TestIdempotency_RoundTrip(t *testing.T) {
	store := &memStore{data: map[string]redisadapter.IdempResponse{}, ttls: map[string]time.Duration{}}
	idem := idempotency.NewIdempotency(store, time.Hour)
	ctx := context.Background()

	got, err := idem.Get(ctx, "k1")
	if err != nil || got != nil {
		t.Fatalf("expected miss, got %v, %v", got, err)
	}

	if err := idem.Set(ctx, "k1", idempotency.Response{Status: 201, Result: []byte(`{"id":"1"}`)}); err != nil {
		t.Fatal(err)
	}
	if store.ttls["k1"] != time.Hour {
		t.Errorf("expected ttl of 1h, got %v", store.ttls["k1"])
	}

	got, err = idem.Get(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != 201 || string(got.Result) != `{"id":"1"}` {
		t.Errorf("unexpected stored response %v", got)
	}
}
