package pricing

import (
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/shopspring/decimal"
)

// tally is the running state a rule sees when it is applied.
type tally struct {
	base     decimal.Decimal
	quantity decimal.Decimal
	total    decimal.Decimal
}

// rule is the per-type behaviour of an offer. cost returns the signed change
// to the running total.
type rule struct {
	// ownsGroupRule replaces the generic group_size check with eligible.
	ownsGroupRule bool
	eligible      func(o domain.Offer, bc domain.BookingContext) bool
	cost          func(o domain.Offer, t tally) decimal.Decimal
	label         string
}

func always(domain.Offer, domain.BookingContext) bool { return true }

func atLeastGroup(o domain.Offer, bc domain.BookingContext) bool {
	return bc.Quantity >= o.GroupSize
}

// discountTo lowers every ticket from base to the offer price.
func discountTo(o domain.Offer, t tally) decimal.Decimal {
	return t.base.Sub(o.PriceAdjustment).Mul(t.quantity).Neg()
}

var rules = map[domain.OfferType]rule{
	domain.OfferFlatRate: {
		eligible: always,
		cost: func(o domain.Offer, t tally) decimal.Decimal {
			return o.PriceAdjustment.Mul(t.quantity).Sub(t.total)
		},
		label: "Flat rate",
	},
	domain.OfferAddPerson: {
		ownsGroupRule: true,
		eligible:      atLeastGroup,
		cost: func(o domain.Offer, t tally) decimal.Decimal {
			extra := t.quantity.Sub(decimal.NewFromInt(int64(o.GroupSize))).Add(decimal.NewFromInt(1))
			return o.PriceAdjustment.Mul(extra)
		},
		label: "Additional person charge",
	},
	domain.OfferGroupDiscount: {
		ownsGroupRule: true,
		eligible:      atLeastGroup,
		cost:          discountTo,
		label:         "Group discount",
	},
	domain.OfferStudentDiscount: {
		eligible: func(_ domain.Offer, bc domain.BookingContext) bool {
			return bc.IsStudent && bc.HasStudentID
		},
		cost:  discountTo,
		label: "Student discount",
	},
	domain.OfferWomenFlashSale: {
		ownsGroupRule: true,
		eligible: func(_ domain.Offer, bc domain.BookingContext) bool {
			return bc.IsWomen && domain.NormalizeDay(bc.BookingDay) == domain.Friday && bc.Quantity == 1
		},
		cost:  discountTo,
		label: "Women's flash sale",
	},
	domain.OfferNoStag: {
		ownsGroupRule: true,
		eligible: func(_ domain.Offer, bc domain.BookingContext) bool {
			return bc.Quantity > 1
		},
		cost:  func(domain.Offer, tally) decimal.Decimal { return decimal.Zero },
		label: "No stag entry",
	},
	domain.OfferRazorpayAbove: {
		eligible: always,
		cost: func(o domain.Offer, t tally) decimal.Decimal {
			return o.PriceAdjustment.Mul(t.quantity)
		},
		label: "Payment gateway fee",
	},
}

// fallback prices offer types the engine does not know: a positive adjustment
// is a discounted ticket price, anything else is a per-ticket surcharge.
var fallback = rule{
	eligible: always,
	cost: func(o domain.Offer, t tally) decimal.Decimal {
		if o.PriceAdjustment.IsPositive() {
			return discountTo(o, t)
		}
		return o.PriceAdjustment.Abs().Mul(t.quantity)
	},
	label: "Offer",
}

func ruleFor(t domain.OfferType) rule {
	if r, ok := rules[t]; ok {
		return r
	}
	return fallback
}
