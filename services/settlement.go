package services

import (
	"github.com/netkrida/myhome-sub004/models"
	"gorm.io/gorm"
)

type settlement struct {
	Applied bool
	// Reason explains why a successful payment left the booking untouched.
	Reason string
}

// applySettlement credits a successful payment to its booking. The booking is
// only modified when the result keeps paidAmount within totalAmount and the
// status/paymentStatus pair consistent; otherwise the payment needs a manual
// refund and the booking is returned unchanged.
func applySettlement(b *models.Booking, p *models.Payment) settlement {
	if b.Status.Terminal() {
		return settlement{Reason: "booking is already " + string(b.Status)}
	}
	total := b.TotalAmount
	checkOut := b.CheckOutDate
	if p.IsExtension() {
		if !b.Status.Extendable() {
			return settlement{Reason: "booking with status " + string(b.Status) + " can no longer be extended"}
		}
		total = total.Add(*p.ExtensionTotal)
		next := *p.ExtensionCheckOut
		checkOut = &next
	}

	paid := b.PaidAmount.Add(p.Amount)
	if paid.GreaterThan(total) {
		return settlement{Reason: "payment exceeds the outstanding booking amount"}
	}

	status := b.Status
	switch b.Status {
	case models.BookingUnpaid, models.BookingPending:
		if p.PaymentType == models.PaymentTypeFull || paid.GreaterThanOrEqual(total) {
			status = models.BookingConfirmed
		} else {
			status = models.BookingDepositPaid
		}
	case models.BookingDepositPaid:
		if paid.GreaterThanOrEqual(total) {
			status = models.BookingConfirmed
		}
	}

	paymentStatus := models.DerivePaymentStatus(paid, total)
	if !status.AllowsPaymentStatus(paymentStatus) {
		return settlement{Reason: "settlement would leave the booking in an inconsistent state"}
	}

	b.TotalAmount = total
	b.CheckOutDate = checkOut
	b.PaidAmount = paid
	b.Status = status
	b.PaymentStatus = paymentStatus
	return settlement{Applied: true}
}

// settle credits p to the locked booking b. An extension is refused when
// another booking holds the room for the added nights. The room row lock
// orders this against Create.
func settle(tx *gorm.DB, b *models.Booking, p *models.Payment) (settlement, error) {
	if p.IsExtension() && b.Status.Extendable() && b.CheckOutDate != nil {
		if _, err := lockRoom(tx, b.RoomID); err != nil {
			return settlement{}, err
		}
		taken, err := roomTaken(tx, b.RoomID, b.ID, *b.CheckOutDate, *p.ExtensionCheckOut)
		if err != nil {
			return settlement{}, err
		}
		if taken {
			return settlement{Reason: "room is booked by another guest during the extension"}, nil
		}
	}
	return applySettlement(b, p), nil
}
