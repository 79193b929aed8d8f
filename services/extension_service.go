package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const MaxExtensionPeriods = 24

// ExtensionQuote is the server's authoritative price for extending a lease.
// An ineligible booking is reported through Eligible/Reason, not an error.
type ExtensionQuote struct {
	BookingID       uuid.UUID        `json:"booking_id"`
	Eligible        bool             `json:"eligible"`
	Reason          string           `json:"reason,omitempty"`
	LeaseType       models.LeaseType `json:"lease_type"`
	CurrentCheckOut *time.Time       `json:"current_check_out,omitempty"`
	ExtensionAmount decimal.Decimal  `json:"extension_amount"`
	DepositAmount   decimal.Decimal  `json:"deposit_amount"`
	Periods         int              `json:"periods"`
	NewCheckOut     *time.Time       `json:"new_check_out,omitempty"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	MaxPeriods      int              `json:"max_periods"`
}

type ExtensionService interface {
	Quote(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, periods int) (*ExtensionQuote, error)
	Apply(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, periods int, deposit bool) (*models.Payment, *ExtensionQuote, error)
}

type extensionService struct {
	db         *gorm.DB
	payments   PaymentService
	depositPct decimal.Decimal
}

func NewExtensionService(db *gorm.DB, payments PaymentService, depositPct decimal.Decimal) ExtensionService {
	if !depositPct.IsPositive() {
		depositPct = decimal.NewFromFloat(0.30)
	}
	return &extensionService{db: db, payments: payments, depositPct: depositPct}
}

// extensionIneligibility returns a human readable reason, or "" when the
// booking can be extended.
func extensionIneligibility(b *models.Booking) string {
	if !b.Status.Extendable() {
		return "booking with status " + string(b.Status) + " is not eligible for extension"
	}
	if b.CheckOutDate == nil {
		return "open-ended bookings are renewed automatically and cannot be extended"
	}
	return ""
}

// quoteFor prices an extension of periods units from the booking's current
// check-out date. The room's current price is used, not the price at booking time.
func quoteFor(b *models.Booking, room *models.Room, periods int, depositPct decimal.Decimal) *ExtensionQuote {
	q := &ExtensionQuote{
		BookingID:       b.ID,
		LeaseType:       b.LeaseType,
		CurrentCheckOut: b.CheckOutDate,
		Periods:         periods,
		MaxPeriods:      MaxExtensionPeriods,
	}
	if reason := extensionIneligibility(b); reason != "" {
		q.Reason = reason
		return q
	}
	pct := depositPct
	if room.DepositPercentage != nil && room.DepositPercentage.IsPositive() {
		pct = *room.DepositPercentage
	}

	perPeriod := room.PriceFor(b.LeaseType)
	if !perPeriod.IsPositive() {
		q.Reason = "room has no price for " + string(b.LeaseType) + " leases"
		return q
	}
	newCheckOut := CalculateNewCheckOutDate(*b.CheckOutDate, b.LeaseType, periods)

	q.Eligible = true
	q.ExtensionAmount = perPeriod
	q.DepositAmount = perPeriod.Mul(pct).Round(0)
	q.TotalAmount = perPeriod.Mul(decimal.NewFromInt(int64(periods)))
	q.NewCheckOut = &newCheckOut
	return q
}

func (s *extensionService) load(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*models.Booking, *models.Room, error) {
	db := s.db.WithContext(ctx)
	b, err := findBooking(db, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.CanAccessBooking(b.CustomerID, b.Property.OwnerID, b.PropertyID) {
		return nil, nil, apperror.Forbidden("you do not have access to this booking")
	}
	var room models.Room
	if err := db.First(&room, "id = ?", b.RoomID).Error; err != nil {
		return nil, nil, dbError(err, "room")
	}
	return b, &room, nil
}

func validPeriods(periods int) error {
	if periods < 1 || periods > MaxExtensionPeriods {
		return apperror.Validation("periods must be between 1 and %d", MaxExtensionPeriods)
	}
	return nil
}

func (s *extensionService) Quote(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, periods int) (*ExtensionQuote, error) {
	if periods == 0 {
		periods = 1
	}
	if err := validPeriods(periods); err != nil {
		return nil, err
	}
	b, room, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	q := quoteFor(b, room, periods, s.depositPct)
	if _, err := checkRoomFree(s.db.WithContext(ctx), b, q); err != nil {
		return nil, err
	}
	return q, nil
}

const roomTakenReason = "room is booked by another guest during the requested extension"

// checkRoomFree marks an eligible quote ineligible when another booking holds
// the room between the current and the new check-out date.
func checkRoomFree(tx *gorm.DB, b *models.Booking, q *ExtensionQuote) (taken bool, err error) {
	if !q.Eligible {
		return false, nil
	}
	taken, err = roomTaken(tx, b.RoomID, b.ID, *b.CheckOutDate, *q.NewCheckOut)
	if err != nil {
		return false, err
	}
	if taken {
		q.Eligible = false
		q.Reason = roomTakenReason
	}
	return taken, nil
}

// Apply re-checks eligibility, prices the extension and opens a payment
// carrying the new check-out date. The booking itself only changes when that
// payment settles.
func (s *extensionService) Apply(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, periods int, deposit bool) (*models.Payment, *ExtensionQuote, error) {
	if err := validPeriods(periods); err != nil {
		return nil, nil, err
	}
	b, room, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, nil, err
	}
	q := quoteFor(b, room, periods, s.depositPct)
	taken, err := checkRoomFree(s.db.WithContext(ctx), b, q)
	switch {
	case err != nil:
		return nil, nil, err
	case taken:
		return nil, q, apperror.Conflict("%s", q.Reason)
	case !q.Eligible:
		return nil, q, apperror.BusinessRule("%s", q.Reason)
	}

	terms := ExtensionTerms{
		Periods:     periods,
		NewCheckOut: *q.NewCheckOut,
		Total:       q.TotalAmount,
		Amount:      q.TotalAmount,
	}
	paymentType := models.PaymentTypeFull
	if deposit {
		paymentType = models.PaymentTypeDeposit
		terms.Amount = decimal.Min(q.DepositAmount, q.TotalAmount)
	}

	// The booking may have moved between the quote and the locked re-read.
	recheck := func(tx *gorm.DB, current *models.Booking) error {
		if reason := extensionIneligibility(current); reason != "" {
			return apperror.BusinessRule("%s", reason)
		}
		if !current.CheckOutDate.Equal(*b.CheckOutDate) {
			return apperror.Conflict("booking check-out date changed, request a new quote")
		}
		if _, err := lockRoom(tx, current.RoomID); err != nil {
			return err
		}
		taken, err := roomTaken(tx, current.RoomID, current.ID, *current.CheckOutDate, terms.NewCheckOut)
		if err != nil {
			return err
		}
		if taken {
			return apperror.Conflict("%s", roomTakenReason)
		}
		return nil
	}

	payment, err := s.payments.CreateExtensionIntent(ctx, actor, bookingID, paymentType, terms, recheck)
	if err != nil {
		return nil, q, err
	}
	return payment, q, nil
}
