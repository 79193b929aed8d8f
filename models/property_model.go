package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Property and Room are owned by the catalog; bookings only read prices and
// flip the availability flag.
type Property struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Room struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PropertyID uuid.UUID `gorm:"type:uuid;not null;index" json:"property_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`

	DailyPrice     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"daily_price"`
	WeeklyPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"weekly_price"`
	MonthlyPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"monthly_price"`
	QuarterlyPrice decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"quarterly_price"`
	YearlyPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"yearly_price"`

	// Fraction in [0,1]; nil falls back to the configured default.
	DepositPercentage *decimal.Decimal `gorm:"type:numeric(5,4)" json:"deposit_percentage"`

	IsAvailable     bool       `gorm:"not null;default:true" json:"is_available"`
	HeldByBookingID *uuid.UUID `gorm:"type:uuid" json:"-"`

	Property Property `gorm:"foreignkey:PropertyID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceFor returns the price of one period of the lease, deriving it from the
// monthly price when the room has no explicit price for that lease type.
func (r *Room) PriceFor(lease LeaseType) decimal.Decimal {
	monthly := r.MonthlyPrice
	switch lease {
	case LeaseDaily:
		if r.DailyPrice.IsPositive() {
			return r.DailyPrice
		}
		return monthly.Div(decimal.NewFromInt(30)).Round(0)
	case LeaseWeekly:
		if r.WeeklyPrice.IsPositive() {
			return r.WeeklyPrice
		}
		return monthly.Div(decimal.NewFromInt(4)).Round(0)
	case LeaseQuarterly:
		if r.QuarterlyPrice.IsPositive() {
			return r.QuarterlyPrice
		}
		return monthly.Mul(decimal.NewFromInt(3))
	case LeaseYearly:
		if r.YearlyPrice.IsPositive() {
			return r.YearlyPrice
		}
		return monthly.Mul(decimal.NewFromInt(12))
	default:
		return monthly
	}
}
