package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const Friday = "friday"

// BookingContext describes the purchase being priced.
type BookingContext struct {
	Quantity       int
	IsStudent      bool
	HasStudentID   bool
	IsWomen        bool
	IsGroupBooking bool
	BookingDay     string
	// At is the instant checked against offer validity windows; zero means now.
	At time.Time
}

// NormalizeDay lower-cases a day-of-week token.
func NormalizeDay(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

// DayOf returns the day-of-week token for t.
func DayOf(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// Adjustment is one signed change to the total; negative cost is a discount.
type Adjustment struct {
	OfferID     uuid.UUID       `json:"offer_id"`
	Type        OfferType       `json:"type"`
	Description string          `json:"description"`
	Cost        decimal.Decimal `json:"cost"`
}

type PricingResult struct {
	BasePrice     decimal.Decimal `json:"base_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	AdjustedPrice decimal.Decimal `json:"adjusted_price"`
	Savings       decimal.Decimal `json:"savings"`
	AppliedOffers []Offer         `json:"applied_offers"`
	Adjustments   []Adjustment    `json:"adjustments"`
}

// Event is a catalog entry offers attach to. TicketPrice is the base unit price.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Venue       string          `json:"venue"`
	Date        time.Time       `json:"date"`
	TicketPrice decimal.Decimal `json:"ticket_price"`
	Currency    string          `json:"currency"`
}
