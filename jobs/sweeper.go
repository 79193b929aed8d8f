// Package jobs holds the periodic sweeps that move bookings and payments
// forward when no client or gateway call will.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/netkrida/myhome-sub004/services"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs every sweep every five minutes.
const DefaultSchedule = "*/5 * * * *"

// Finder selects the rows each sweep acts on.
type Finder interface {
	LapsedPayments(ctx context.Context, now time.Time) ([]string, error)
	StaleBookings(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error)
	CheckedOutBookings(ctx context.Context, checkedOutBefore time.Time) ([]uuid.UUID, error)
}

type paymentExpirer interface {
	ExpirePayment(ctx context.Context, orderID string) (*services.ReconcileResult, error)
}

type bookingCloser interface {
	Expire(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error)
}

type Sweeper struct {
	finder   Finder
	payments paymentExpirer
	bookings bookingCloser
	window   time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewSweeper(finder Finder, payments paymentExpirer, bookings bookingCloser, window, grace time.Duration) *Sweeper {
	return &Sweeper{
		finder:   finder,
		payments: payments,
		bookings: bookings,
		window:   window,
		grace:    grace,
		now:      time.Now,
	}
}

// logSkip reports a row that could not be moved. Business rule violations
// mean another request got there first.
func logSkip(what string, id any, err error) {
	if apperror.Is(err, apperror.KindBusinessRule) {
		log.Printf("Skipping %s %v: %v", what, id, err)
		return
	}
	log.Printf("🔥 Error sweeping %s %v: %v", what, id, err)
}

// ExpireLapsed closes PENDING payments past their expiry, then expires
// UNPAID/PENDING bookings older than the payment window that have neither a
// pending nor a successful payment left.
func (s *Sweeper) ExpireLapsed(ctx context.Context) (expiredPayments, expiredBookings int) {
	log.Println("Running job: ExpireLapsed...")
	now := s.now()

	orderIDs, err := s.finder.LapsedPayments(ctx, now)
	if err != nil {
		log.Printf("Error finding lapsed payments: %v", err)
		return 0, 0
	}
	for _, orderID := range orderIDs {
		res, err := s.payments.ExpirePayment(ctx, orderID)
		if err != nil {
			logSkip("payment", orderID, err)
			continue
		}
		if !res.Duplicate {
			expiredPayments++
		}
	}

	bookingIDs, err := s.finder.StaleBookings(ctx, now.Add(-s.window))
	if err != nil {
		log.Printf("Error finding stale bookings: %v", err)
		return expiredPayments, 0
	}
	for _, id := range bookingIDs {
		if _, err := s.bookings.Expire(ctx, id); err != nil {
			logSkip("booking", id, err)
			continue
		}
		expiredBookings++
	}

	if expiredPayments+expiredBookings > 0 {
		log.Printf("Expired %d payment(s) and %d booking(s).", expiredPayments, expiredBookings)
	}
	return expiredPayments, expiredBookings
}

// CompleteCheckedOut promotes bookings checked out longer than the grace
// period. Completing an already completed booking is a no-op.
func (s *Sweeper) CompleteCheckedOut(ctx context.Context) int {
	log.Println("Running job: CompleteCheckedOut...")

	ids, err := s.finder.CheckedOutBookings(ctx, s.now().Add(-s.grace))
	if err != nil {
		log.Printf("Error finding checked-out bookings: %v", err)
		return 0
	}
	completed := 0
	for _, id := range ids {
		if _, err := s.bookings.Complete(ctx, auth.System(), id); err != nil {
			logSkip("booking", id, err)
			continue
		}
		completed++
	}
	if completed > 0 {
		log.Printf("Completed %d booking(s).", completed)
	}
	return completed
}

// Schedule registers both sweeps on c. ctx bounds every run.
func Schedule(ctx context.Context, c *cron.Cron, schedule string, s *Sweeper) error {
	if _, err := c.AddFunc(schedule, func() { s.ExpireLapsed(ctx) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(schedule, func() { s.CompleteCheckedOut(ctx) }); err != nil {
		return err
	}
	return nil
}
