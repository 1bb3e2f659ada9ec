package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/event-offer-pricing/internal/adapters/crdb"
	"github.com/robertarktes/event-offer-pricing/internal/config"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"github.com/robertarktes/event-offer-pricing/internal/offers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg, "offer-expiry-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()
	observability.InitMetrics()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool, logger)

	worker := NewExpiryWorker(repo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.ExpiryInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

type OfferExpirer interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	ExpireOffers(ctx context.Context, tx pgx.Tx, now time.Time) ([]domain.Offer, error)
	InsertOutbox(ctx context.Context, tx pgx.Tx, rec crdb.OutboxRecord) error
}

type ExpiryWorker struct {
	repo       OfferExpirer
	logger     observability.Logger
	maxRetries int
	backoff    time.Duration
}

func NewExpiryWorker(repo OfferExpirer, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{repo: repo, logger: logger, maxRetries: 3, backoff: time.Second}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := w.Sweep(ctx, now); err != nil {
				w.logger.Error("failed to expire offers: ", err)
			}
		}
	}
}

// Sweep deactivates offers whose window closed before now and queues an
// offer.expired event for each in the same transaction. Serialization
// failures are retried with backoff. It returns how many offers expired.
func (w *ExpiryWorker) Sweep(ctx context.Context, now time.Time) (int, error) {
	var err error
	for i := 0; i < w.maxRetries; i++ {
		var n int
		if n, err = w.sweepOnce(ctx, now); err == nil {
			if n > 0 {
				w.logger.WithField("count", n).Info("expired offers")
			}
			return n, nil
		}
		if !errors.Is(err, domain.ErrSerializationFailure) {
			return 0, err
		}
		backoff := time.Duration(1<<i) * w.backoff
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return 0, errors.Wrapf(err, "failed after %d retries", w.maxRetries)
}

func (w *ExpiryWorker) sweepOnce(ctx context.Context, now time.Time) (int, error) {
	var expired []domain.Offer
	err := w.repo.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		expired, err = w.repo.ExpireOffers(ctx, tx, now)
		if err != nil {
			return err
		}
		for _, o := range expired {
			rec, err := offers.NewOutboxRecord(offers.EventOfferExpired, o, now)
			if err != nil {
				return err
			}
			if err := w.repo.InsertOutbox(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}
