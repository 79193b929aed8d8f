// Package events carries committed state changes to push, broker and email
// subscribers. Sinks are called after the database transaction commits and
// must not block the caller.
package events

import (
	"log"
	"sync"

	"github.com/netkrida/myhome-sub004/models"
)

type BookingEvent struct {
	Booking  models.Booking
	Previous models.BookingStatus
	Reason   string
}

// PaymentEvent is emitted when a payment reaches a terminal status.
// Applied is false when a success was recorded without changing the booking.
type PaymentEvent struct {
	Payment models.Payment
	Booking models.Booking
	Applied bool
}

type PayoutEvent struct {
	Payout   models.Payout
	Previous models.PayoutStatus
}

type Sink interface {
	BookingChanged(BookingEvent)
	PaymentUpdated(PaymentEvent)
	PayoutChanged(PayoutEvent)
}

// Fanout delivers every event to each sink in order.
type Fanout []Sink

func (f Fanout) BookingChanged(e BookingEvent) {
	for _, s := range f {
		safely(func() { s.BookingChanged(e) })
	}
}

func (f Fanout) PaymentUpdated(e PaymentEvent) {
	for _, s := range f {
		safely(func() { s.PaymentUpdated(e) })
	}
}

func (f Fanout) PayoutChanged(e PayoutEvent) {
	for _, s := range f {
		safely(func() { s.PayoutChanged(e) })
	}
}

func safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("🔥 Event sink panicked: %v", r)
		}
	}()
	fn()
}

type Nop struct{}

func (Nop) BookingChanged(BookingEvent) {}
func (Nop) PaymentUpdated(PaymentEvent) {}
func (Nop) PayoutChanged(PayoutEvent)   {}

// Recorder keeps events in memory.
type Recorder struct {
	mu       sync.Mutex
	Bookings []BookingEvent
	Payments []PaymentEvent
	Payouts  []PayoutEvent
}

func (r *Recorder) BookingChanged(e BookingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Bookings = append(r.Bookings, e)
}

func (r *Recorder) PaymentUpdated(e PaymentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Payments = append(r.Payments, e)
}

func (r *Recorder) PayoutChanged(e PayoutEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Payouts = append(r.Payouts, e)
}
