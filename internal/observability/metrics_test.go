package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsUseProjectPrefix(t *testing.T) {
	collectors := []prometheus.Collector{RequestsTotal, DBTxDuration, OutboxLag, RabbitPublishRetries,
		RateLimitExceeded, QuotesTotal, OffersApplied, OfferCacheLookups}

	for _, c := range collectors {
		descs := make(chan *prometheus.Desc, 1)
		c.Describe(descs)
		desc := (<-descs).String()
		if !strings.Contains(desc, `fqName: "offer_pricing_`) {
			t.Errorf("expected offer_pricing_ prefix, got %s", desc)
		}
	}
}
