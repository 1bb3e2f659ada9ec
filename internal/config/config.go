package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CRDBDSN        string        `envconfig:"CRDB_DSN"`
	MongoURI       string        `envconfig:"MONGO_URI"`
	MongoDB        string        `envconfig:"MONGO_DB" default:"offer_pricing"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RabbitURL      string        `envconfig:"RABBIT_URL"`
	OTLPEndpoint   string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":8080"`
	OfferCacheTTL  time.Duration `envconfig:"OFFER_CACHE_TTL" default:"5m"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"1h"`
	ExpiryInterval time.Duration `envconfig:"EXPIRY_INTERVAL" default:"1m"`
	OutboxInterval time.Duration `envconfig:"OUTBOX_INTERVAL" default:"5s"`
	QuoteRateLimit int           `envconfig:"QUOTE_RATE_LIMIT" default:"60"`
	CurrencySymbol string        `envconfig:"CURRENCY_SYMBOL" default:"₹"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
