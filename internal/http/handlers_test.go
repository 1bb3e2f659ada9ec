package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	redisadapter "github.com/robertarktes/event-offer-pricing/internal/adapters/redis"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	httpapi "github.com/robertarktes/event-offer-pricing/internal/http"
	"github.com/robertarktes/event-offer-pricing/internal/idempotency"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"github.com/robertarktes/event-offer-pricing/internal/offers"
	"github.com/shopspring/decimal"
)

type stubService struct {
	creates   int
	lastInput domain.OfferInput
	lastQuote offers.QuoteRequest
	quoteErr  error
}

func (s *stubService) Create(ctx context.Context, eventID uuid.UUID, in domain.OfferInput) (domain.Offer, error) {
	s.creates++
	s.lastInput = in
	in.ID = uuid.New()
	in.EventID = eventID
	return domain.ParseOffer(in)
}

func (s *stubService) Update(ctx context.Context, id uuid.UUID, in domain.OfferInput) (domain.Offer, error) {
	return domain.Offer{}, domain.ErrNotFound
}

func (s *stubService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *stubService) Toggle(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	return domain.Offer{ID: id}, nil
}

func (s *stubService) Get(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	return domain.Offer{}, errors.Wrapf(domain.ErrNotFound, "offer %s", id)
}

func (s *stubService) List(ctx context.Context, eventID uuid.UUID, activeOnly bool) ([]domain.Offer, error) {
	return []domain.Offer{}, nil
}

func (s *stubService) Quote(ctx context.Context, eventID uuid.UUID, req offers.QuoteRequest) (offers.Quote, error) {
	s.lastQuote = req
	if s.quoteErr != nil {
		return offers.Quote{}, s.quoteErr
	}
	return offers.Quote{
		EventID: eventID,
		Pricing: domain.PricingResult{TotalPrice: decimal.NewFromInt(1680)},
	}, nil
}

func (s *stubService) CreateEvent(ctx context.Context, in offers.EventInput) (domain.Event, error) {
	return domain.Event{ID: uuid.New(), Name: in.Name}, nil
}

func (s *stubService) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	return domain.Event{}, domain.ErrNotFound
}

type countingLimiter struct {
	hits int
}

func (l *countingLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	l.hits++
	return l.hits <= rate
}

type memStore map[string]redisadapter.IdempResponse

func (m memStore) Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error) {
	resp, ok := m[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (m memStore) Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error {
	m[key] = resp
	return nil
}

func newServer(svc *stubService, rl *countingLimiter, rate int) http.Handler {
	logger := observability.NewDiscardLogger()
	h := httpapi.NewHandlers(svc, logger, map[string]httpapi.ReadinessCheck{
		"db": func(ctx context.Context) error { return nil },
	})
	idemp := idempotency.NewIdempotency(memStore{}, time.Hour)
	return httpapi.SetupRouter(h, logger, rl, rate, idemp)
}

func do(t *testing.T, srv http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestCreateOffer(t *testing.T) {
	svc := &stubService{}
	srv := newServer(svc, &countingLimiter{}, 10)
	eventID := uuid.New()

	rec := do(t, srv, http.MethodPost, "/v1/events/"+eventID.String()+"/offers",
		`{"offer_type":"group_discount","price_adjustment":400.5,"group_size":4}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastInput.PriceAdjustment == nil || *svc.lastInput.PriceAdjustment != "400.5" {
		t.Errorf("expected price adjustment to pass through as text, got %v", svc.lastInput.PriceAdjustment)
	}
	var got domain.Offer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.EventID != eventID || got.GroupSize != 4 {
		t.Errorf("unexpected offer %+v", got)
	}
}

func TestCreateOffer_BadRequests(t *testing.T) {
	srv := newServer(&stubService{}, &countingLimiter{}, 10)
	eventID := uuid.New().String()

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/v1/events/" + eventID + "/offers", `{"offer_type":`},
		{"invalid event id", "/v1/events/nope/offers", `{"offer_type":"flat_rate","price_adjustment":1}`},
		{"group without size", "/v1/events/" + eventID + "/offers", `{"offer_type":"group_discount","price_adjustment":400}`},
		{"missing adjustment", "/v1/events/" + eventID + "/offers", `{"offer_type":"flat_rate"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.path, tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetOffer_NotFound(t *testing.T) {
	srv := newServer(&stubService{}, &countingLimiter{}, 10)

	rec := do(t, srv, http.MethodGet, "/v1/offers/"+uuid.New().String(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteOffer(t *testing.T) {
	srv := newServer(&stubService{}, &countingLimiter{}, 10)

	rec := do(t, srv, http.MethodDelete, "/v1/offers/"+uuid.New().String(), "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestQuote(t *testing.T) {
	svc := &stubService{}
	srv := newServer(svc, &countingLimiter{}, 10)
	eventID := uuid.New().String()

	rec := do(t, srv, http.MethodPost, "/v1/events/"+eventID+"/quote", `{"quantity":4}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastQuote.SelectedOfferIDs != nil {
		t.Error("expected absent selection to stay nil")
	}
	var q offers.Quote
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatal(err)
	}
	if !q.Pricing.TotalPrice.Equal(decimal.NewFromInt(1680)) {
		t.Errorf("expected total 1680, got %s", q.Pricing.TotalPrice)
	}

	do(t, srv, http.MethodPost, "/v1/events/"+eventID+"/quote", `{"quantity":4,"selected_offer_ids":[]}`, nil)
	if svc.lastQuote.SelectedOfferIDs == nil {
		t.Error("expected explicit empty selection to be non-nil")
	}
}

func TestQuote_InvalidQuantity(t *testing.T) {
	svc := &stubService{quoteErr: errors.Wrap(domain.ErrInvalidInput, "quantity must be at least 1")}
	srv := newServer(svc, &countingLimiter{}, 10)

	rec := do(t, srv, http.MethodPost, "/v1/events/"+uuid.New().String()+"/quote", `{"quantity":0}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestQuote_RateLimited(t *testing.T) {
	srv := newServer(&stubService{}, &countingLimiter{}, 2)
	path := "/v1/events/" + uuid.New().String() + "/quote"

	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodPost, path, `{"quantity":1}`, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if rec := do(t, srv, http.MethodPost, path, `{"quantity":1}`, nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

func TestIdempotentCreateReplays(t *testing.T) {
	svc := &stubService{}
	srv := newServer(svc, &countingLimiter{}, 10)
	path := "/v1/events/" + uuid.New().String() + "/offers"
	body := `{"offer_type":"flat_rate","price_adjustment":700}`
	headers := map[string]string{"Idempotency-Key": "0123456789abcdef-1"}

	first := do(t, srv, http.MethodPost, path, body, headers)
	second := do(t, srv, http.MethodPost, path, body, headers)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if svc.creates != 1 {
		t.Errorf("expected one create, got %d", svc.creates)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("expected replayed body to match the original")
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay header")
	}

	short := do(t, srv, http.MethodPost, path, body, map[string]string{"Idempotency-Key": "short"})
	if short.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a short key, got %d", short.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newServer(&stubService{}, &countingLimiter{}, 10)

	if rec := do(t, srv, http.MethodGet, "/v1/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/v1/readyz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz: expected 200, got %d", rec.Code)
	}
}
