package config_test

import (
	"testing"
	"time"

	"github.com/robertarktes/event-offer-pricing/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CRDB_DSN", "postgresql://root@localhost:26257/offer_pricing?sslmode=disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.OfferCacheTTL != 5*time.Minute {
		t.Errorf("expected 5m cache ttl, got %v", cfg.OfferCacheTTL)
	}
	if cfg.CurrencySymbol != "₹" {
		t.Errorf("expected rupee symbol, got %q", cfg.CurrencySymbol)
	}
	if cfg.MongoDB != "offer_pricing" {
		t.Errorf("expected offer_pricing database, got %q", cfg.MongoDB)
	}
	if cfg.CRDBDSN == "" {
		t.Error("expected CRDB_DSN to be read from the environment")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EXPIRY_INTERVAL", "30s")
	t.Setenv("QUOTE_RATE_LIMIT", "5")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ExpiryInterval != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.ExpiryInterval)
	}
	if cfg.QuoteRateLimit != 5 {
		t.Errorf("expected 5, got %d", cfg.QuoteRateLimit)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("OUTBOX_INTERVAL", "soon")

	if _, err := config.Load(); err == nil {
		t.Error("expected an error for an invalid duration")
	}
}
