package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Clock is injected so tests can pin "now".
type Clock func() time.Time

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockBooking takes the row lock on a booking and loads its property.
func lockBooking(tx *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := forUpdate(tx).First(&b, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "booking")
	}
	if err := tx.First(&b.Property, "id = ?", b.PropertyID).Error; err != nil {
		return nil, dbError(err, "property")
	}
	return &b, nil
}

func lockRoom(tx *gorm.DB, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := forUpdate(tx).First(&room, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "room")
	}
	return &room, nil
}

// roomTaken reports whether a booking other than exclude holds the room for
// any night of [from, to). Open-ended bookings hold it indefinitely.
func roomTaken(tx *gorm.DB, roomID, exclude uuid.UUID, from, to time.Time) (bool, error) {
	var overlapping int64
	err := tx.Model(&models.Booking{}).
		Where("room_id = ? AND id <> ? AND status IN ?", roomID, exclude, models.RoomHoldingStatuses()).
		Where("check_in_date < ? AND (check_out_date IS NULL OR check_out_date > ?)", to, from).
		Count(&overlapping).Error
	if err != nil {
		return false, dbError(err, "booking")
	}
	return overlapping > 0, nil
}

func findBooking(tx *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := tx.Preload("Property").First(&b, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "booking")
	}
	return &b, nil
}

func saveBooking(tx *gorm.DB, b *models.Booking) error {
	return tx.Omit(clause.Associations).Save(b).Error
}

// releaseRoom frees the room only when this booking is the one holding it.
func releaseRoom(tx *gorm.DB, b *models.Booking) error {
	return tx.Model(&models.Room{}).
		Where("id = ? AND held_by_booking_id = ?", b.RoomID, b.ID).
		Updates(map[string]any{"is_available": true, "held_by_booking_id": nil}).Error
}

// dbError turns storage errors into the error taxonomy.
func dbError(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(what)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("%s already exists", what)
	}
	return apperror.Internal(err)
}
