package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Booking struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingCode   string     `gorm:"size:32;not null;unique" json:"booking_code"`
	CustomerID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	PropertyID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"property_id"`
	RoomID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"room_id"`
	CheckInDate   time.Time  `gorm:"type:date;not null" json:"check_in_date"`
	CheckOutDate  *time.Time `gorm:"type:date" json:"check_out_date"`
	LeaseType     LeaseType  `gorm:"size:20;not null" json:"lease_type"`

	TotalAmount   decimal.Decimal  `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	PaidAmount    decimal.Decimal  `gorm:"type:numeric(14,2);not null;default:0" json:"paid_amount"`
	DepositAmount *decimal.Decimal `gorm:"type:numeric(14,2)" json:"deposit_amount"`

	Status        BookingStatus        `gorm:"size:20;not null;default:'UNPAID';index" json:"status"`
	PaymentStatus BookingPaymentStatus `gorm:"size:20;not null;default:'UNPAID'" json:"payment_status"`

	IsValidated      bool       `gorm:"not null;default:false" json:"is_validated"`
	ValidatedAt      *time.Time `json:"validated_at"`
	ActualCheckInAt  *time.Time `json:"actual_check_in_at"`
	ActualCheckOutAt *time.Time `json:"actual_check_out_at"`

	CancelReason *string    `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	Room     Room     `gorm:"foreignkey:RoomID" json:"-"`
	Property Property `gorm:"foreignkey:PropertyID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Remaining is what the customer still owes on the booking.
func (b *Booking) Remaining() decimal.Decimal {
	rest := b.TotalAmount.Sub(b.PaidAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// DerivePaymentStatus maps paid/total onto the coarse payment signal.
func DerivePaymentStatus(paid, total decimal.Decimal) BookingPaymentStatus {
	switch {
	case paid.IsZero():
		return PaymentStatusUnpaid
	case paid.LessThan(total):
		return PaymentStatusPartiallyPaid
	default:
		return PaymentStatusPaid
	}
}
