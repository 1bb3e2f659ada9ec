package pricing

import (
	"fmt"

	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/shopspring/decimal"
)

// Describe renders a short, human-readable summary of an offer's effect.
func Describe(o domain.Offer, currency string) string {
	p := money(currency, o.PriceAdjustment)
	switch o.Type {
	case domain.OfferFlatRate:
		return "Flat rate: " + p
	case domain.OfferAddPerson:
		return fmt.Sprintf("+%s per additional person", p)
	case domain.OfferGroupDiscount:
		return fmt.Sprintf("%s for groups of %d+", p, o.GroupSize)
	case domain.OfferStudentDiscount:
		return p + " for students with a valid ID"
	case domain.OfferWomenFlashSale:
		return p + " women's flash sale, Fridays, single ticket"
	case domain.OfferNoStag:
		return "Couples and groups only"
	case domain.OfferRazorpayAbove:
		return fmt.Sprintf("+%s payment gateway fee per ticket", p)
	}
	if o.Title != "" {
		return o.Title
	}
	if o.PriceAdjustment.IsPositive() {
		return p + " per ticket"
	}
	return fmt.Sprintf("+%s per ticket", money(currency, o.PriceAdjustment.Abs()))
}

func adjustmentLabel(o domain.Offer, r rule, currency string) string {
	if o.Title != "" {
		return o.Title
	}
	if o.Type == domain.OfferFlatRate {
		return fmt.Sprintf("%s (%s per ticket)", r.label, money(currency, o.PriceAdjustment))
	}
	return r.label
}

func money(currency string, d decimal.Decimal) string {
	return currency + d.Round(2).String()
}
