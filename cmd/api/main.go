package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/event-offer-pricing/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/event-offer-pricing/internal/adapters/mongo"
	"github.com/robertarktes/event-offer-pricing/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/event-offer-pricing/internal/adapters/redis"
	"github.com/robertarktes/event-offer-pricing/internal/config"
	httphandler "github.com/robertarktes/event-offer-pricing/internal/http"
	"github.com/robertarktes/event-offer-pricing/internal/idempotency"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"github.com/robertarktes/event-offer-pricing/internal/offers"
	"github.com/robertarktes/event-offer-pricing/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "offer-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	observability.InitMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	if err := crdb.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	crdbRepo := crdb.NewRepository(pool, logger)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDB)
	mongoCatalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient, cfg.OfferCacheTTL)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisClient)

	svc := offers.NewService(crdbRepo, redisCache, mongoCatalog, audit, logger, offers.WithCurrency(cfg.CurrencySymbol))

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	consumer, err := rabbit.NewConsumer(rabbitConn, "offer-api.cache", logger, "offer.#")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()
	go func() {
		err := consumer.Run(ctx, func(ctx context.Context, d amqp.Delivery) error {
			return svc.InvalidateFromEvent(ctx, d.Body)
		})
		if err != nil {
			logger.Error("cache invalidation consumer stopped: ", err)
		}
	}()

	handlers := httphandler.NewHandlers(svc, logger, map[string]httphandler.ReadinessCheck{
		"crdb":  crdbRepo.Ping,
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	r := httphandler.SetupRouter(handlers, logger, rl, cfg.QuoteRateLimit, idemp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.HTTPAddr).Info("offer api listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
