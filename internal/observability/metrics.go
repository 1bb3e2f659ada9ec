package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_pricing_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "offer_pricing_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "offer_pricing_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_pricing_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_pricing_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)

	QuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_pricing_quotes_total",
			Help: "Total price quotes computed",
		},
		[]string{"result"},
	)

	OffersApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_pricing_offers_applied_total",
			Help: "Offers applied to quotes, by offer type",
		},
		[]string{"offer_type"},
	)

	OfferCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_pricing_offer_cache_lookups_total",
			Help: "Offer list cache lookups",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal, DBTxDuration, OutboxLag, RabbitPublishRetries,
			RateLimitExceeded, QuotesTotal, OffersApplied, OfferCacheLookups)
	})
}
