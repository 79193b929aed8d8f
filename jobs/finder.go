package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/models"
	"gorm.io/gorm"
)

// sweepBatch caps how many rows one run touches.
const sweepBatch = 200

type GormFinder struct {
	DB *gorm.DB
}

func (f GormFinder) LapsedPayments(ctx context.Context, now time.Time) ([]string, error) {
	var orderIDs []string
	err := f.DB.WithContext(ctx).
		Model(&models.Payment{}).
		Where("status = ? AND expires_at < ?", models.PaymentPending, now).
		Order("expires_at").
		Limit(sweepBatch).
		Pluck("order_id", &orderIDs).Error
	return orderIDs, err
}

func (f GormFinder) StaleBookings(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := f.DB.WithContext(ctx).
		Model(&models.Booking{}).
		Where("bookings.status IN ? AND bookings.created_at < ?", []models.BookingStatus{models.BookingUnpaid, models.BookingPending}, createdBefore).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.booking_id = bookings.id AND p.status IN ?)", []models.PaymentStatus{models.PaymentPending, models.PaymentSuccess}).
		Order("bookings.created_at").
		Limit(sweepBatch).
		Pluck("bookings.id", &ids).Error
	return ids, err
}

func (f GormFinder) CheckedOutBookings(ctx context.Context, checkedOutBefore time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := f.DB.WithContext(ctx).
		Model(&models.Booking{}).
		Where("status = ? AND actual_check_out_at < ?", models.BookingCheckedOut, checkedOutBefore).
		Order("actual_check_out_at").
		Limit(sweepBatch).
		Pluck("id", &ids).Error
	return ids, err
}
