// Package offers manages event offers and prices bookings against them.
package offers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/event-offer-pricing/internal/adapters/crdb"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"github.com/robertarktes/event-offer-pricing/internal/pricing"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	EventOfferCreated = "offer.created"
	EventOfferUpdated = "offer.updated"
	EventOfferDeleted = "offer.deleted"
	EventOfferToggled = "offer.toggled"
	EventOfferExpired = "offer.expired"
)

const sharedReadTimeout = 5 * time.Second

type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	InsertOffer(ctx context.Context, tx pgx.Tx, o domain.Offer) error
	UpdateOffer(ctx context.Context, tx pgx.Tx, o domain.Offer) error
	DeleteOffer(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Offer, error)
	ToggleOffer(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (domain.Offer, error)
	GetOffer(ctx context.Context, id uuid.UUID) (*domain.Offer, error)
	ListOffers(ctx context.Context, eventID uuid.UUID) ([]domain.Offer, error)
	InsertOutbox(ctx context.Context, tx pgx.Tx, rec crdb.OutboxRecord) error
}

type Cache interface {
	GetOffers(ctx context.Context, eventID uuid.UUID) ([]domain.Offer, bool, error)
	SetOffers(ctx context.Context, eventID uuid.UUID, offers []domain.Offer) error
	InvalidateOffers(ctx context.Context, eventID uuid.UUID) error
}

type Catalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
	CreateEvent(ctx context.Context, e domain.Event) error
}

type Audit interface {
	LogOffer(ctx context.Context, action string, o domain.Offer) error
}

// OfferEvent is the payload published for every offer change.
type OfferEvent struct {
	Type       string       `json:"type"`
	OfferID    uuid.UUID    `json:"offer_id"`
	EventID    uuid.UUID    `json:"event_id"`
	Offer      domain.Offer `json:"offer"`
	OccurredAt time.Time    `json:"occurred_at"`
}

type Service struct {
	store    Store
	cache    Cache
	catalog  Catalog
	audit    Audit
	engine   *pricing.Engine
	logger   observability.Logger
	currency string
	now      func() time.Time
	group    singleflight.Group
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCurrency sets the symbol used when an event has none of its own.
func WithCurrency(symbol string) Option {
	return func(s *Service) { s.currency = symbol }
}

func NewService(store Store, cache Cache, catalog Catalog, audit Audit, logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		cache:    cache,
		catalog:  catalog,
		audit:    audit,
		logger:   logger,
		currency: pricing.DefaultCurrency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = pricing.NewEngine(pricing.WithClock(s.now), pricing.WithCurrency(s.currency))
	return s
}

func (s *Service) Create(ctx context.Context, eventID uuid.UUID, in domain.OfferInput) (domain.Offer, error) {
	if _, err := s.catalog.GetEvent(ctx, eventID); err != nil {
		return domain.Offer{}, err
	}
	now := s.now().UTC()
	in.ID = uuid.New()
	in.EventID = eventID
	in.CreatedAt = now
	in.UpdatedAt = now
	o, err := domain.ParseOffer(in)
	if err != nil {
		return domain.Offer{}, err
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.store.InsertOffer(ctx, tx, o); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, EventOfferCreated, o)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	s.afterChange(ctx, EventOfferCreated, o)
	return o, nil
}

// Update replaces an offer's definition. The event and creation time never
// change, and an omitted is_active keeps the stored value.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in domain.OfferInput) (domain.Offer, error) {
	existing, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return domain.Offer{}, err
	}
	in.ID = existing.ID
	in.EventID = existing.EventID
	in.CreatedAt = existing.CreatedAt
	in.UpdatedAt = s.now().UTC()
	if in.IsActive == nil {
		active := existing.IsActive
		in.IsActive = &active
	}
	o, err := domain.ParseOffer(in)
	if err != nil {
		return domain.Offer{}, err
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.store.UpdateOffer(ctx, tx, o); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, EventOfferUpdated, o)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	s.afterChange(ctx, EventOfferUpdated, o)
	return o, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var deleted domain.Offer
	err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		deleted, err = s.store.DeleteOffer(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.enqueue(ctx, tx, EventOfferDeleted, deleted)
	})
	if err != nil {
		return err
	}
	s.afterChange(ctx, EventOfferDeleted, deleted)
	return nil
}

func (s *Service) Toggle(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	var toggled domain.Offer
	err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		toggled, err = s.store.ToggleOffer(ctx, tx, id, s.now().UTC())
		if err != nil {
			return err
		}
		return s.enqueue(ctx, tx, EventOfferToggled, toggled)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	s.afterChange(ctx, EventOfferToggled, toggled)
	return toggled, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	o, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return domain.Offer{}, err
	}
	return *o, nil
}

func (s *Service) List(ctx context.Context, eventID uuid.UUID, activeOnly bool) ([]domain.Offer, error) {
	all, err := s.offersFor(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}
	active := make([]domain.Offer, 0, len(all))
	for _, o := range all {
		if o.IsActive {
			active = append(active, o)
		}
	}
	return active, nil
}

func (s *Service) enqueue(ctx context.Context, tx pgx.Tx, eventType string, o domain.Offer) error {
	rec, err := NewOutboxRecord(eventType, o, s.now().UTC())
	if err != nil {
		return err
	}
	return s.store.InsertOutbox(ctx, tx, rec)
}

// NewOutboxRecord encodes an offer change as a pending outbox row.
func NewOutboxRecord(eventType string, o domain.Offer, at time.Time) (crdb.OutboxRecord, error) {
	payload, err := json.Marshal(OfferEvent{
		Type:       eventType,
		OfferID:    o.ID,
		EventID:    o.EventID,
		Offer:      o,
		OccurredAt: at,
	})
	if err != nil {
		return crdb.OutboxRecord{}, errors.Wrap(err, "encode offer event")
	}
	return crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "offer",
		AggregateID:   o.ID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     uuid.New().String(),
	}, nil
}

// afterChange runs the side effects of a committed change. Failures are logged;
// the change itself already happened.
func (s *Service) afterChange(ctx context.Context, action string, o domain.Offer) {
	logger := observability.FromContext(ctx, s.logger).WithField("offer_id", o.ID)
	if err := s.audit.LogOffer(ctx, action, o); err != nil {
		logger.Warn("audit offer change: ", err)
	}
	if err := s.cache.InvalidateOffers(ctx, o.EventID); err != nil {
		logger.Warn("invalidate offer cache: ", err)
	}
}

// offersFor reads an event's offers through the cache. Concurrent misses for
// the same event share one database read, which runs detached from the
// caller that started it so other waiters survive that caller going away.
func (s *Service) offersFor(ctx context.Context, eventID uuid.UUID) ([]domain.Offer, error) {
	logger := observability.FromContext(ctx, s.logger).WithField("event_id", eventID)

	cached, ok, err := s.cache.GetOffers(ctx, eventID)
	if err != nil {
		logger.Warn("read offer cache: ", err)
	}
	if ok {
		observability.OfferCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	observability.OfferCacheLookups.WithLabelValues("miss").Inc()

	ch := s.group.DoChan(eventID.String(), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		offers, err := s.store.ListOffers(fctx, eventID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetOffers(fctx, eventID, offers); err != nil {
			logger.Warn("fill offer cache: ", err)
		}
		return offers, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Offer), nil
	}
}

// EventInput is a catalog event as submitted by a client.
type EventInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	Date        time.Time `json:"date"`
	TicketPrice string    `json:"ticket_price"`
	Currency    string    `json:"currency"`
}

func (s *Service) CreateEvent(ctx context.Context, in EventInput) (domain.Event, error) {
	if in.Name == "" {
		return domain.Event{}, errors.Wrap(domain.ErrInvalidInput, "name is required")
	}
	price, err := decimal.NewFromString(in.TicketPrice)
	if err != nil {
		return domain.Event{}, errors.Wrapf(domain.ErrInvalidInput, "ticket_price %q is not a number", in.TicketPrice)
	}
	if price.IsNegative() {
		return domain.Event{}, errors.Wrap(domain.ErrInvalidInput, "ticket_price must not be negative")
	}
	currency := in.Currency
	if currency == "" {
		currency = s.currency
	}
	e := domain.Event{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		Venue:       in.Venue,
		Date:        in.Date,
		TicketPrice: price,
		Currency:    currency,
	}
	if err := s.catalog.CreateEvent(ctx, e); err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	return s.catalog.GetEvent(ctx, id)
}

// QuoteRequest describes a booking to price. A nil SelectedOfferIDs applies
// every eligible offer; a non-nil one applies only the listed eligible offers.
type QuoteRequest struct {
	Quantity         int         `json:"quantity"`
	IsStudent        bool        `json:"is_student"`
	HasStudentID     bool        `json:"has_student_id"`
	IsWomen          bool        `json:"is_women"`
	IsGroupBooking   bool        `json:"is_group_booking"`
	BookingDay       string      `json:"booking_day"`
	SelectedOfferIDs []uuid.UUID `json:"selected_offer_ids"`
}

type EligibleOffer struct {
	domain.Offer
	Display string `json:"display"`
}

type Quote struct {
	EventID  uuid.UUID            `json:"event_id"`
	Currency string               `json:"currency"`
	Pricing  domain.PricingResult `json:"pricing"`
	Eligible []EligibleOffer      `json:"eligible_offers"`
}

func (s *Service) Quote(ctx context.Context, eventID uuid.UUID, req QuoteRequest) (Quote, error) {
	ctx, span := otel.Tracer("offers").Start(ctx, "offers.Quote")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.Int("booking.quantity", req.Quantity),
	)

	if req.Quantity < 1 {
		observability.QuotesTotal.WithLabelValues("invalid").Inc()
		return Quote{}, errors.Wrapf(domain.ErrInvalidInput, "quantity must be at least 1, got %d", req.Quantity)
	}

	var (
		event  domain.Event
		offers []domain.Offer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		event, err = s.catalog.GetEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		offers, err = s.offersFor(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		observability.QuotesTotal.WithLabelValues("error").Inc()
		return Quote{}, err
	}

	if event.TicketPrice.IsNegative() {
		observability.QuotesTotal.WithLabelValues("invalid").Inc()
		return Quote{}, errors.Wrapf(domain.ErrInvalidInput, "event %s has a negative ticket price", eventID)
	}

	bc := domain.BookingContext{
		Quantity:       req.Quantity,
		IsStudent:      req.IsStudent,
		HasStudentID:   req.HasStudentID,
		IsWomen:        req.IsWomen,
		IsGroupBooking: req.IsGroupBooking,
		BookingDay:     req.BookingDay,
		At:             s.now(),
	}
	var selected pricing.Selection
	if req.SelectedOfferIDs != nil {
		selected = pricing.Select(req.SelectedOfferIDs...)
	}

	currency := event.Currency
	if currency == "" {
		currency = s.currency
	}
	engine := s.engine
	if currency != s.currency {
		engine = pricing.NewEngine(pricing.WithClock(s.now), pricing.WithCurrency(currency))
	}

	result := engine.Compute(event.TicketPrice, offers, bc, selected)
	eligible := engine.Eligible(offers, bc)
	q := Quote{
		EventID:  eventID,
		Currency: currency,
		Pricing:  result,
		Eligible: make([]EligibleOffer, 0, len(eligible)),
	}
	for _, o := range eligible {
		q.Eligible = append(q.Eligible, EligibleOffer{Offer: o, Display: pricing.Describe(o, currency)})
	}

	observability.QuotesTotal.WithLabelValues("ok").Inc()
	for _, o := range result.AppliedOffers {
		observability.OffersApplied.WithLabelValues(string(o.Type)).Inc()
	}
	span.SetAttributes(attribute.String("pricing.total", result.TotalPrice.String()))
	return q, nil
}

// InvalidateFromEvent drops the cached offer list named by a published offer
// event. Other processes change offers too, so the api listens for them.
func (s *Service) InvalidateFromEvent(ctx context.Context, body []byte) error {
	var ev OfferEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Wrap(err, "decode offer event")
	}
	if ev.EventID == uuid.Nil {
		return errors.New("offer event without event_id")
	}
	return s.cache.InvalidateOffers(ctx, ev.EventID)
}
