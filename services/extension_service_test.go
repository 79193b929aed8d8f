package services

import (
	"testing"

	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteFor_TwoMonthlyPeriods(t *testing.T) {
	checkOut := date(2024, 8, 1)
	b := &models.Booking{Status: models.BookingConfirmed, LeaseType: models.LeaseMonthly, CheckOutDate: &checkOut}
	room := &models.Room{MonthlyPrice: idr(1_000_000)}

	q := quoteFor(b, room, 2, decimal.NewFromFloat(0.30))

	require.True(t, q.Eligible)
	assert.True(t, q.ExtensionAmount.Equal(idr(1_000_000)))
	assert.True(t, q.TotalAmount.Equal(idr(2_000_000)))
	assert.True(t, q.DepositAmount.Equal(idr(300_000)))
	require.NotNil(t, q.NewCheckOut)
	assert.Equal(t, date(2024, 10, 1), *q.NewCheckOut)
}

func TestQuoteFor_RoomDepositPercentage(t *testing.T) {
	checkOut := date(2024, 8, 1)
	pct := decimal.NewFromFloat(0.5)
	b := &models.Booking{Status: models.BookingCheckedIn, LeaseType: models.LeaseMonthly, CheckOutDate: &checkOut}
	room := &models.Room{MonthlyPrice: idr(1_000_000), DepositPercentage: &pct}

	q := quoteFor(b, room, 1, decimal.NewFromFloat(0.30))

	require.True(t, q.Eligible)
	assert.True(t, q.DepositAmount.Equal(idr(500_000)))
}

func TestQuoteFor_Ineligible(t *testing.T) {
	checkOut := date(2024, 8, 1)
	room := &models.Room{MonthlyPrice: idr(1_000_000)}

	for _, status := range []models.BookingStatus{
		models.BookingUnpaid, models.BookingPending, models.BookingCheckedOut,
		models.BookingCompleted, models.BookingCancelled, models.BookingExpired,
	} {
		b := &models.Booking{Status: status, LeaseType: models.LeaseMonthly, CheckOutDate: &checkOut}
		q := quoteFor(b, room, 1, decimal.NewFromFloat(0.30))
		assert.False(t, q.Eligible, status)
		assert.Contains(t, q.Reason, string(status))
		assert.Nil(t, q.NewCheckOut)
	}

	openEnded := &models.Booking{Status: models.BookingConfirmed, LeaseType: models.LeaseMonthly}
	q := quoteFor(openEnded, room, 1, decimal.NewFromFloat(0.30))
	assert.False(t, q.Eligible)
	assert.NotEmpty(t, q.Reason)
}

func TestQuoteFor_NoPrice(t *testing.T) {
	checkOut := date(2024, 8, 1)
	b := &models.Booking{Status: models.BookingConfirmed, LeaseType: models.LeaseMonthly, CheckOutDate: &checkOut}

	q := quoteFor(b, &models.Room{}, 1, decimal.NewFromFloat(0.30))
	assert.False(t, q.Eligible)
}

func TestValidPeriods(t *testing.T) {
	assert.NoError(t, validPeriods(1))
	assert.NoError(t, validPeriods(MaxExtensionPeriods))
	assert.Error(t, validPeriods(0))
	assert.Error(t, validPeriods(MaxExtensionPeriods+1))
}

func TestDepositFor(t *testing.T) {
	b := &models.Booking{TotalAmount: idr(6_000_000)}
	assert.True(t, DepositFor(b, nil, decimal.NewFromFloat(0.30)).Equal(idr(1_800_000)))

	fixed := idr(2_000_000)
	b.DepositAmount = &fixed
	assert.True(t, DepositFor(b, nil, decimal.NewFromFloat(0.30)).Equal(idr(2_000_000)))

	tooBig := idr(9_000_000)
	b.DepositAmount = &tooBig
	assert.True(t, DepositFor(b, nil, decimal.NewFromFloat(0.30)).Equal(idr(6_000_000)))

	pct := decimal.NewFromFloat(0.5)
	b.DepositAmount = nil
	assert.True(t, DepositFor(b, &models.Room{DepositPercentage: &pct}, decimal.NewFromFloat(0.30)).Equal(idr(3_000_000)))
}
