package messaging

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/events"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
)

type PaymentMessage struct {
	OrderID       string          `json:"order_id"`
	BookingID     uuid.UUID       `json:"booking_id"`
	BookingCode   string          `json:"booking_code,omitempty"`
	PaymentType   string          `json:"payment_type"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Applied       bool            `json:"applied"`
	Extension     bool            `json:"extension"`
	BookingStatus string          `json:"booking_status,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type BookingMessage struct {
	BookingID     uuid.UUID       `json:"booking_id"`
	BookingCode   string          `json:"booking_code"`
	PropertyID    uuid.UUID       `json:"property_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Status        string          `json:"status"`
	Previous      string          `json:"previous,omitempty"`
	PaymentStatus string          `json:"payment_status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Reason        string          `json:"reason,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type PayoutMessage struct {
	PayoutID   uuid.UUID       `json:"payout_id"`
	OwnerID    uuid.UUID       `json:"owner_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Previous   string          `json:"previous,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EventSink publishes committed domain changes to the events exchange.
// Publishing is best effort: failures are logged, never returned.
type EventSink struct {
	publisher *Publisher
}

func NewEventSink(publisher *Publisher) *EventSink {
	return &EventSink{publisher: publisher}
}

var _ events.Sink = (*EventSink)(nil)

func paymentRoutingKey(e events.PaymentEvent) string {
	switch e.Payment.Status {
	case models.PaymentSuccess:
		if e.Applied {
			return KeyPaymentSettled
		}
		return KeyPaymentUnapplied
	case models.PaymentFailed, models.PaymentExpired:
		return KeyPaymentFailed
	}
	return ""
}

func (s *EventSink) send(key string, payload any) {
	if err := s.publisher.Publish(context.Background(), key, payload); err != nil {
		log.Printf("🔥 Failed to publish %s: %v", key, err)
	}
}

func (s *EventSink) PaymentUpdated(e events.PaymentEvent) {
	key := paymentRoutingKey(e)
	if key == "" {
		return
	}
	s.send(key, PaymentMessage{
		OrderID:       e.Payment.OrderID,
		BookingID:     e.Payment.BookingID,
		BookingCode:   e.Booking.BookingCode,
		PaymentType:   string(e.Payment.PaymentType),
		Status:        string(e.Payment.Status),
		Amount:        e.Payment.Amount,
		Applied:       e.Applied,
		Extension:     e.Payment.IsExtension(),
		BookingStatus: string(e.Booking.Status),
		OccurredAt:    time.Now(),
	})
}

func (s *EventSink) BookingChanged(e events.BookingEvent) {
	b := e.Booking
	s.send(KeyBookingPrefix+strings.ToLower(string(b.Status)), BookingMessage{
		BookingID:     b.ID,
		BookingCode:   b.BookingCode,
		PropertyID:    b.PropertyID,
		CustomerID:    b.CustomerID,
		Status:        string(b.Status),
		Previous:      string(e.Previous),
		PaymentStatus: string(b.PaymentStatus),
		PaidAmount:    b.PaidAmount,
		TotalAmount:   b.TotalAmount,
		Reason:        e.Reason,
		OccurredAt:    time.Now(),
	})
}

func (s *EventSink) PayoutChanged(e events.PayoutEvent) {
	p := e.Payout
	s.send(KeyPayoutPrefix+strings.ToLower(string(p.Status)), PayoutMessage{
		PayoutID:   p.ID,
		OwnerID:    p.AdminKosID,
		Amount:     p.Amount,
		Status:     string(p.Status),
		Previous:   string(e.Previous),
		OccurredAt: time.Now(),
	})
}
