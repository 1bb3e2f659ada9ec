package domain

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OfferType string

const (
	OfferFlatRate        OfferType = "flat_rate"
	OfferAddPerson       OfferType = "add_person"
	OfferGroupDiscount   OfferType = "group_discount"
	OfferStudentDiscount OfferType = "student_discount"
	OfferWomenFlashSale  OfferType = "women_flash_sale"
	OfferNoStag          OfferType = "no_stag"
	OfferRazorpayAbove   OfferType = "razorpay_above"
)

// Known reports whether t is one of the enumerated offer types. Unknown types
// are still storable; the pricing engine prices them with its fallback rule.
func (t OfferType) Known() bool {
	switch t {
	case OfferFlatRate, OfferAddPerson, OfferGroupDiscount, OfferStudentDiscount,
		OfferWomenFlashSale, OfferNoStag, OfferRazorpayAbove:
		return true
	}
	return false
}

// RequiresGroupSize reports whether offers of type t are meaningless without a
// group threshold.
func (t OfferType) RequiresGroupSize() bool {
	return t == OfferAddPerson || t == OfferGroupDiscount
}

// Offer is a validated pricing rule attached to an event. Values come from
// ParseOffer, so required thresholds are present. The exception is the
// snapshot storage returns after writing to a row that no longer parses;
// those are only announced, never priced.
type Offer struct {
	ID              uuid.UUID       `json:"id"`
	EventID         uuid.UUID       `json:"event_id"`
	Type            OfferType       `json:"offer_type"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
	MinQuantity     int             `json:"min_quantity"`
	MaxQuantity     *int            `json:"max_quantity,omitempty"`
	GroupSize       int             `json:"group_size"`
	IsActive        bool            `json:"is_active"`
	ValidFrom       *time.Time      `json:"valid_from,omitempty"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OfferInput is an offer record as it arrives from storage or a request body,
// before validation.
type OfferInput struct {
	ID              uuid.UUID
	EventID         uuid.UUID
	OfferType       string
	Title           string
	Description     string
	PriceAdjustment *string
	MinQuantity     *int
	MaxQuantity     *int
	GroupSize       *int
	IsActive        *bool
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ParseOffer turns a raw record into an Offer or reports why it cannot be one.
// Every returned error matches ErrInvalidOffer.
func ParseOffer(in OfferInput) (Offer, error) {
	if in.ID == uuid.Nil {
		return Offer{}, errors.Wrap(ErrInvalidOffer, "id is required")
	}
	if in.EventID == uuid.Nil {
		return Offer{}, errors.Wrap(ErrInvalidOffer, "event_id is required")
	}

	typ := OfferType(strings.ToLower(strings.TrimSpace(in.OfferType)))
	if typ == "" {
		return Offer{}, errors.Wrap(ErrInvalidOffer, "offer_type is required")
	}

	if in.PriceAdjustment == nil || strings.TrimSpace(*in.PriceAdjustment) == "" {
		return Offer{}, errors.Wrap(ErrInvalidOffer, "price_adjustment is required")
	}
	adj, err := decimal.NewFromString(strings.TrimSpace(*in.PriceAdjustment))
	if err != nil {
		return Offer{}, errors.Wrapf(ErrInvalidOffer, "price_adjustment %q is not a number", *in.PriceAdjustment)
	}

	minQty := 1
	if in.MinQuantity != nil {
		if *in.MinQuantity < 0 {
			return Offer{}, errors.Wrapf(ErrInvalidOffer, "min_quantity %d is negative", *in.MinQuantity)
		}
		if *in.MinQuantity > 0 {
			minQty = *in.MinQuantity
		}
	}

	var maxQty *int
	if in.MaxQuantity != nil {
		if *in.MaxQuantity < minQty {
			return Offer{}, errors.Wrapf(ErrInvalidOffer, "max_quantity %d is below min_quantity %d", *in.MaxQuantity, minQty)
		}
		v := *in.MaxQuantity
		maxQty = &v
	}

	groupSize := 0
	if in.GroupSize != nil {
		if *in.GroupSize < 0 {
			return Offer{}, errors.Wrapf(ErrInvalidOffer, "group_size %d is negative", *in.GroupSize)
		}
		groupSize = *in.GroupSize
	}
	if typ.RequiresGroupSize() && groupSize < 1 {
		return Offer{}, errors.Wrapf(ErrInvalidOffer, "%s requires group_size >= 1", typ)
	}

	if in.ValidFrom != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.ValidFrom) {
		return Offer{}, errors.Wrap(ErrInvalidOffer, "valid_until is before valid_from")
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	return Offer{
		ID:              in.ID,
		EventID:         in.EventID,
		Type:            typ,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		PriceAdjustment: adj,
		MinQuantity:     minQty,
		MaxQuantity:     maxQty,
		GroupSize:       groupSize,
		IsActive:        active,
		ValidFrom:       copyTime(in.ValidFrom),
		ValidUntil:      copyTime(in.ValidUntil),
		CreatedAt:       in.CreatedAt,
		UpdatedAt:       in.UpdatedAt,
	}, nil
}

// ActiveAt reports whether t falls inside the offer's validity window.
func (o Offer) ActiveAt(t time.Time) bool {
	if o.ValidFrom != nil && t.Before(*o.ValidFrom) {
		return false
	}
	if o.ValidUntil != nil && t.After(*o.ValidUntil) {
		return false
	}
	return true
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
