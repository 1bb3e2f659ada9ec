// Package pricing decides which event offers apply to a booking and what the
// booking costs once they do. Everything here is pure: no I/O, no logging, and
// inputs are never modified.
package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "₹"

// Selection is the set of offer ids a purchaser has toggled on. A nil
// Selection applies every eligible offer.
type Selection map[uuid.UUID]struct{}

func Select(ids ...uuid.UUID) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Selection) includes(id uuid.UUID) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

type Engine struct {
	now      func() time.Time
	currency string
}

type Option func(*Engine)

// WithClock sets the clock used when a booking carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCurrency sets the symbol used in adjustment descriptions.
func WithCurrency(symbol string) Option {
	return func(e *Engine) { e.currency = symbol }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now, currency: DefaultCurrency}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) resolve(bc domain.BookingContext) domain.BookingContext {
	if bc.At.IsZero() {
		bc.At = e.now()
	}
	if bc.BookingDay == "" {
		bc.BookingDay = domain.DayOf(bc.At)
	}
	bc.BookingDay = domain.NormalizeDay(bc.BookingDay)
	return bc
}

// IsEligible reports whether offer may affect the price of the booking.
func (e *Engine) IsEligible(offer domain.Offer, bc domain.BookingContext) bool {
	return e.eligible(offer, e.resolve(bc))
}

func (e *Engine) eligible(o domain.Offer, bc domain.BookingContext) bool {
	if !o.IsActive {
		return false
	}
	if bc.Quantity < o.MinQuantity {
		return false
	}
	if o.MaxQuantity != nil && bc.Quantity > *o.MaxQuantity {
		return false
	}
	r := ruleFor(o.Type)
	if !r.ownsGroupRule && o.GroupSize > 1 && bc.Quantity < o.GroupSize {
		return false
	}
	if !o.ActiveAt(bc.At) {
		return false
	}
	return r.eligible(o, bc)
}

// Eligible returns the offers that may apply to the booking, in input order.
func (e *Engine) Eligible(offers []domain.Offer, bc domain.BookingContext) []domain.Offer {
	bc = e.resolve(bc)
	out := make([]domain.Offer, 0, len(offers))
	for _, o := range offers {
		if e.eligible(o, bc) {
			out = append(out, o)
		}
	}
	return out
}

// Compute prices bc.Quantity tickets at basePrice with every eligible and
// selected offer applied. flat_rate offers run first since they replace the
// base total; the rest run in listed order.
func (e *Engine) Compute(basePrice decimal.Decimal, offers []domain.Offer, bc domain.BookingContext, selected Selection) domain.PricingResult {
	bc = e.resolve(bc)
	qty := decimal.NewFromInt(int64(bc.Quantity))

	res := domain.PricingResult{
		BasePrice:     basePrice,
		AppliedOffers: []domain.Offer{},
		Adjustments:   []domain.Adjustment{},
	}
	total := basePrice.Mul(qty)
	savings := decimal.Zero

	for _, o := range ordered(offers) {
		if !selected.includes(o.ID) || !e.eligible(o, bc) {
			continue
		}
		r := ruleFor(o.Type)
		cost := r.cost(o, tally{base: basePrice, quantity: qty, total: total})
		total = total.Add(cost)
		if cost.IsNegative() {
			savings = savings.Add(cost.Neg())
		}
		res.AppliedOffers = append(res.AppliedOffers, o)
		res.Adjustments = append(res.Adjustments, domain.Adjustment{
			OfferID:     o.ID,
			Type:        o.Type,
			Description: adjustmentLabel(o, r, e.currency),
			Cost:        cost,
		})
	}

	if total.IsNegative() {
		total = decimal.Zero
	}
	res.TotalPrice = total
	res.Savings = savings
	res.AdjustedPrice = decimal.Zero
	if bc.Quantity > 0 {
		res.AdjustedPrice = total.Div(qty).Round(2)
	}
	return res
}

// ordered returns offers with flat_rate first, keeping relative order.
func ordered(offers []domain.Offer) []domain.Offer {
	out := make([]domain.Offer, 0, len(offers))
	for _, o := range offers {
		if o.Type == domain.OfferFlatRate {
			out = append(out, o)
		}
	}
	for _, o := range offers {
		if o.Type != domain.OfferFlatRate {
			out = append(out, o)
		}
	}
	return out
}
