package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/events"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/netkrida/myhome-sub004/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateBookingInput struct {
	RoomID        uuid.UUID
	LeaseType     models.LeaseType
	CheckIn       time.Time
	CheckOut      *time.Time
	DepositAmount *decimal.Decimal
}

type BookingService interface {
	Create(ctx context.Context, actor auth.Actor, in CreateBookingInput) (*models.Booking, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error)
	ListPayments(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]models.Payment, error)
	CheckIn(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error)
	CheckOut(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error)
	Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error)
	Validate(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error)
	Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*models.Booking, error)
	Expire(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

type bookingService struct {
	db     *gorm.DB
	events events.Sink
	now    Clock
}

func NewBookingService(db *gorm.DB, sink events.Sink, now Clock) BookingService {
	if sink == nil {
		sink = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &bookingService{db: db, events: sink, now: now}
}

var openEnded = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func (s *bookingService) Create(ctx context.Context, actor auth.Actor, in CreateBookingInput) (*models.Booking, error) {
	if !actor.Is(auth.RoleCustomer) {
		return nil, apperror.Forbidden("only customers can create bookings")
	}
	if !in.LeaseType.Valid() {
		return nil, apperror.Validation("invalid lease type %q", in.LeaseType)
	}
	now := s.now()
	checkIn := DateOnly(in.CheckIn)
	if checkIn.Before(DateOnly(now.In(checkIn.Location()))) {
		return nil, apperror.Validation("check-in date cannot be in the past")
	}
	var checkOut *time.Time
	if in.CheckOut != nil {
		co := DateOnly(*in.CheckOut)
		if !co.After(checkIn) {
			return nil, apperror.Validation("check-out date must be after check-in date")
		}
		checkOut = &co
	} else if !in.LeaseType.Exclusive() {
		return nil, apperror.Validation("check-out date is required for %s leases", in.LeaseType)
	}

	var booking models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, in.RoomID)
		if err != nil {
			return err
		}
		if !room.IsAvailable {
			return apperror.Conflict("room is not available")
		}

		end := openEnded
		if checkOut != nil {
			end = *checkOut
		}
		taken, err := roomTaken(tx, room.ID, uuid.Nil, checkIn, end)
		if err != nil {
			return err
		}
		if taken {
			return apperror.Conflict("room is already booked for the requested period")
		}

		var property models.Property
		if err := tx.First(&property, "id = ?", room.PropertyID).Error; err != nil {
			return dbError(err, "property")
		}

		total := LeaseTotal(room, checkIn, checkOut, in.LeaseType)
		if !total.IsPositive() {
			return apperror.BusinessRule("room has no price for %s leases", in.LeaseType)
		}
		if in.DepositAmount != nil {
			if !in.DepositAmount.IsPositive() || in.DepositAmount.GreaterThan(total) {
				return apperror.Validation("deposit amount must be between 0 and the booking total")
			}
		}

		code, err := utils.GenerateUniqueBookingCode(tx, now)
		if err != nil {
			return dbError(err, "booking code")
		}

		booking = models.Booking{
			BookingCode:   code,
			CustomerID:    actor.UserID,
			PropertyID:    property.ID,
			RoomID:        room.ID,
			CheckInDate:   checkIn,
			CheckOutDate:  checkOut,
			LeaseType:     in.LeaseType,
			TotalAmount:   total,
			PaidAmount:    decimal.Zero,
			DepositAmount: in.DepositAmount,
			Status:        models.BookingUnpaid,
			PaymentStatus: models.PaymentStatusUnpaid,
		}
		if err := tx.Omit("Room", "Property").Create(&booking).Error; err != nil {
			return dbError(err, "booking")
		}

		if in.LeaseType.Exclusive() {
			err := tx.Model(room).Updates(map[string]any{"is_available": false, "held_by_booking_id": booking.ID}).Error
			if err != nil {
				return dbError(err, "room")
			}
		}
		booking.Property = property
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Booking %s created for room %s (%s, total %s)", booking.BookingCode, booking.RoomID, booking.LeaseType, booking.TotalAmount)
	s.events.BookingChanged(events.BookingEvent{Booking: booking})
	return &booking, nil
}

func (s *bookingService) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error) {
	b, err := findBooking(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessBooking(b.CustomerID, b.Property.OwnerID, b.PropertyID) {
		return nil, apperror.Forbidden("you do not have access to this booking")
	}
	return b, nil
}

func (s *bookingService) ListPayments(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]models.Payment, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	var payments []models.Payment
	if err := s.db.WithContext(ctx).Where("booking_id = ?", id).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, dbError(err, "payment")
	}
	return payments, nil
}

// transition runs fn against the locked booking and persists the result.
// fn returns false when there is nothing to write.
func (s *bookingService) transition(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, b *models.Booking) (bool, error)) (*models.Booking, models.BookingStatus, bool, error) {
	var (
		booking  *models.Booking
		previous models.BookingStatus
		changed  bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := lockBooking(tx, id)
		if err != nil {
			return err
		}
		previous = b.Status
		changed, err = fn(tx, b)
		if err != nil {
			return err
		}
		if changed {
			if err := saveBooking(tx, b); err != nil {
				return dbError(err, "booking")
			}
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, "", false, err
	}
	return booking, previous, changed, nil
}

func (s *bookingService) emit(b *models.Booking, previous models.BookingStatus, changed bool, reason string) {
	if changed {
		s.events.BookingChanged(events.BookingEvent{Booking: *b, Previous: previous, Reason: reason})
	}
}

func (s *bookingService) CheckIn(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error) {
	b, prev, changed, err := s.transition(ctx, id, func(tx *gorm.DB, b *models.Booking) (bool, error) {
		if !actor.CanManageProperty(b.Property.OwnerID, b.PropertyID) {
			return false, apperror.Forbidden("you cannot manage bookings of this property")
		}
		if b.Status != models.BookingConfirmed && b.Status != models.BookingDepositPaid {
			return false, apperror.BusinessRule("cannot check in a booking with status %s", b.Status)
		}
		now := s.now()
		b.ActualCheckInAt = &now
		b.Status = models.BookingCheckedIn
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(b, prev, changed, "")
	return b, nil
}

func (s *bookingService) CheckOut(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error) {
	b, prev, changed, err := s.transition(ctx, id, func(tx *gorm.DB, b *models.Booking) (bool, error) {
		if !actor.CanManageProperty(b.Property.OwnerID, b.PropertyID) {
			return false, apperror.Forbidden("you cannot manage bookings of this property")
		}
		if b.Status != models.BookingCheckedIn {
			return false, apperror.BusinessRule("cannot check out a booking with status %s", b.Status)
		}
		now := s.now()
		b.ActualCheckOutAt = &now
		b.Status = models.BookingCheckedOut
		return true, releaseRoom(tx, b)
	})
	if err != nil {
		return nil, dbError(err, "room")
	}
	s.emit(b, prev, changed, "")
	return b, nil
}

// Complete promotes a checked-out booking. Repeating it is a no-op.
func (s *bookingService) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error) {
	b, prev, changed, err := s.transition(ctx, id, func(tx *gorm.DB, b *models.Booking) (bool, error) {
		if !actor.Is(auth.RoleAdminKos, auth.RoleSuperAdmin, auth.RoleSystem) ||
			!actor.CanManageProperty(b.Property.OwnerID, b.PropertyID) {
			return false, apperror.Forbidden("you cannot complete bookings of this property")
		}
		if b.Status == models.BookingCompleted {
			return false, nil
		}
		if b.Status != models.BookingCheckedOut {
			return false, apperror.BusinessRule("cannot complete a booking with status %s", b.Status)
		}
		b.Status = models.BookingCompleted
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(b, prev, changed, "")
	return b, nil
}

func (s *bookingService) Validate(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error) {
	b, _, _, err := s.transition(ctx, id, func(tx *gorm.DB, b *models.Booking) (bool, error) {
		if !actor.CanManageProperty(b.Property.OwnerID, b.PropertyID) {
			return false, apperror.Forbidden("you cannot manage bookings of this property")
		}
		if b.IsValidated {
			return false, nil
		}
		if b.Status.Terminal() {
			return false, apperror.BusinessRule("cannot validate a booking with status %s", b.Status)
		}
		now := s.now()
		b.IsValidated = true
		b.ValidatedAt = &now
		return true, nil
	})
	return b, err
}

func (s *bookingService) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*models.Booking, error) {
	b, prev, changed, err := s.transition(ctx, id, func(tx *gorm.DB, b *models.Booking) (bool, error) {
		switch {
		case actor.Is(auth.RoleCustomer):
			if actor.UserID != b.CustomerID {
				return false, apperror.Forbidden("you do not have access to this booking")
			}
			if b.Status != models.BookingUnpaid && b.Status != models.BookingPending {
				return false, apperror.BusinessRule("paid bookings can only be cancelled by the property owner")
			}
		case actor.Is(auth.RoleAdminKos, auth.RoleSuperAdmin, auth.RoleSystem):
			if !actor.CanManageProperty(b.Property.OwnerID, b.PropertyID) {
				return false, apperror.Forbidden("you cannot manage bookings of this property")
			}
		default:
			return false, apperror.Forbidden("you cannot cancel bookings")
		}
		if b.Status.Terminal() {
			return false, apperror.BusinessRule("booking is already %s", b.Status)
		}
		now := s.now()
		b.Status = models.BookingCancelled
		b.CancelledAt = &now
		if reason != "" {
			b.CancelReason = &reason
		}
		return true, releaseRoom(tx, b)
	})
	if err != nil {
		return nil, dbError(err, "room")
	}
	log.Printf("Booking %s cancelled (was %s)", b.BookingCode, prev)
	s.emit(b, prev, changed, reason)
	return b, nil
}

// Expire terminates a booking whose payment window lapsed without a
// successful payment.
func (s *bookingService) Expire(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, prev, changed, err := s.transition(ctx, id, func(tx *gorm.DB, b *models.Booking) (bool, error) {
		if b.Status != models.BookingUnpaid && b.Status != models.BookingPending {
			return false, apperror.BusinessRule("cannot expire a booking with status %s", b.Status)
		}
		var settled int64
		err := tx.Model(&models.Payment{}).
			Where("booking_id = ? AND status = ?", b.ID, models.PaymentSuccess).
			Count(&settled).Error
		if err != nil {
			return false, err
		}
		if settled > 0 {
			return false, apperror.BusinessRule("booking has a successful payment")
		}
		b.Status = models.BookingExpired
		return true, releaseRoom(tx, b)
	})
	if err != nil {
		return nil, dbError(err, "booking")
	}
	s.emit(b, prev, changed, "payment window lapsed")
	return b, nil
}
