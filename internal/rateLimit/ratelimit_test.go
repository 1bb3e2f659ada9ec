package rateLimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/event-offer-pricing/internal/rateLimit"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRateLimiter_Allow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	rl := rateLimit.NewRateLimiter(client)
	for i := 0; i < 3; i++ {
		if !rl.Allow(ctx, "ip:10.0.0.1", 3, time.Minute) {
			t.Fatalf("request %d: expected to be allowed", i)
		}
	}
	if rl.Allow(ctx, "ip:10.0.0.1", 3, time.Minute) {
		t.Error("expected the fourth request to be rejected")
	}
	if !rl.Allow(ctx, "ip:10.0.0.2", 3, time.Minute) {
		t.Error("expected a different client to be allowed")
	}
}
