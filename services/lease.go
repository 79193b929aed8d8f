package services

import (
	"time"

	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
)

const maxLeasePeriods = 3660

// CalculateNewCheckOutDate adds periods units of the lease type one at a time.
// Month-based units land on the last valid day when the day overflows, so
// 2024-01-31 plus one month is 2024-02-29.
func CalculateNewCheckOutDate(current time.Time, lease models.LeaseType, periods int) time.Time {
	next := current
	for i := 0; i < periods; i++ {
		next = addLeaseUnit(next, lease)
	}
	return next
}

func addLeaseUnit(t time.Time, lease models.LeaseType) time.Time {
	switch lease {
	case models.LeaseDaily:
		return t.AddDate(0, 0, 1)
	case models.LeaseWeekly:
		return t.AddDate(0, 0, 7)
	case models.LeaseQuarterly:
		return addMonthsClamped(t, 3)
	case models.LeaseYearly:
		return addMonthsClamped(t, 12)
	default:
		return addMonthsClamped(t, 1)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(firstOfTarget); d > last {
		d = last
	}
	return firstOfTarget.AddDate(0, 0, d-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// LeasePeriods counts the billing periods needed to cover [checkIn, checkOut).
// Open-ended stays are billed one period at a time.
func LeasePeriods(checkIn time.Time, checkOut *time.Time, lease models.LeaseType) int {
	if checkOut == nil || !checkOut.After(checkIn) {
		return 1
	}
	periods := 0
	cursor := checkIn
	for cursor.Before(*checkOut) && periods < maxLeasePeriods {
		cursor = addLeaseUnit(cursor, lease)
		periods++
	}
	return periods
}

// LeaseTotal is the price of one period times the number of periods.
func LeaseTotal(room *models.Room, checkIn time.Time, checkOut *time.Time, lease models.LeaseType) decimal.Decimal {
	return room.PriceFor(lease).Mul(decimal.NewFromInt(int64(LeasePeriods(checkIn, checkOut, lease))))
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
