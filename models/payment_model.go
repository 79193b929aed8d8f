package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Payment struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"booking_id"`
	OrderID     string          `gorm:"size:64;not null;unique" json:"order_id"`
	PaymentType PaymentType     `gorm:"size:20;not null" json:"payment_type"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Status      PaymentStatus   `gorm:"size:20;not null;default:'PENDING';index" json:"status"`

	PaymentMethod   *string    `gorm:"size:50" json:"payment_method"`
	TransactionTime *time.Time `json:"transaction_time"`
	TransactionID   *string    `gorm:"size:100;unique" json:"transaction_id"`

	SnapToken      string         `gorm:"size:255" json:"snap_token,omitempty"`
	RedirectURL    string         `gorm:"size:500" json:"redirect_url,omitempty"`
	GatewayStatus  *string        `gorm:"size:30" json:"gateway_status,omitempty"`
	GatewayPayload datatypes.JSON `gorm:"type:jsonb" json:"-"`

	// Set only on extension payments; applied to the booking on settlement.
	ExtensionPeriods  *int             `json:"extension_periods,omitempty"`
	ExtensionCheckOut *time.Time       `gorm:"type:date" json:"extension_check_out,omitempty"`
	ExtensionTotal    *decimal.Decimal `gorm:"type:numeric(14,2)" json:"extension_total,omitempty"`

	// RefundRequired marks a SUCCESS payment that could not be credited to its
	// booking. It is not owner income.
	RefundRequired bool `gorm:"not null;default:false" json:"refund_required"`

	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`

	Booking Booking `gorm:"foreignkey:BookingID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Payment) IsExtension() bool {
	return p.ExtensionCheckOut != nil && p.ExtensionTotal != nil
}
