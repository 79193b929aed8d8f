package utils

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/models"
	"gorm.io/gorm"
)

const bookingCodeSuffixLength = 6
const letterBytes = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const maxCodeAttempts = 10

var ErrCodeSpaceExhausted = errors.New("could not generate a unique booking code")

// NewBookingCode returns a candidate code like BK240801X7Q2MZ.
func NewBookingCode(now time.Time, r *rand.Rand) string {
	b := make([]byte, bookingCodeSuffixLength)
	for i := range b {
		b[i] = letterBytes[r.Intn(len(letterBytes))]
	}
	return "BK" + now.Format("060102") + string(b)
}

// GenerateUniqueBookingCode retries until the code is unused inside tx.
// The unique index on booking_code still guards concurrent inserts.
func GenerateUniqueBookingCode(tx *gorm.DB, now time.Time) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := NewBookingCode(now, seededRand)

		var count int64
		if err := tx.Model(&models.Booking{}).Where("booking_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// NewOrderID derives a gateway order id from the booking code; every payment
// attempt gets a fresh suffix.
func NewOrderID(bookingCode string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return bookingCode + "-" + suffix
}

// BookingCodeFromOrderID recovers the booking code embedded by NewOrderID.
func BookingCodeFromOrderID(orderID string) string {
	i := strings.LastIndex(orderID, "-")
	if i <= 0 {
		return orderID
	}
	return orderID[:i]
}
