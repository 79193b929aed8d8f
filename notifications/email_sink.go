package notifications

import (
	"context"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/events"
	"github.com/netkrida/myhome-sub004/models"
	"gorm.io/gorm"
)

type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error
}

type Directory interface {
	Lookup(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type GormDirectory struct {
	DB *gorm.DB
}

func (d GormDirectory) Lookup(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.DB.WithContext(ctx).Select("id", "full_name", "email").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailSink mails customers about settled, refunded or cancelled bookings and
// owners about payout decisions. Sends run in the background.
type EmailSink struct {
	mailer    Mailer
	directory Directory
	run       func(func())
}

func NewEmailSink(mailer Mailer, directory Directory) *EmailSink {
	return &EmailSink{mailer: mailer, directory: directory, run: func(f func()) { go f() }}
}

var _ events.Sink = (*EmailSink)(nil)

func (s *EmailSink) notify(userID uuid.UUID, subject, body string) {
	if userID == uuid.Nil {
		return
	}
	s.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		user, err := s.directory.Lookup(ctx, userID)
		if err != nil {
			log.Printf("🔥 Could not load recipient %s for %q: %v", userID, subject, err)
			return
		}
		if err := s.mailer.Send(ctx, user.Email, user.FullName, subject, body); err != nil {
			log.Printf("🔥 Failed to send email to %s: %v", user.Email, err)
			return
		}
		log.Printf("✅ Email %q sent to %s", subject, user.Email)
	})
}

func (s *EmailSink) PaymentUpdated(e events.PaymentEvent) {
	p, b := e.Payment, e.Booking
	if p.Status != models.PaymentSuccess {
		return
	}
	if !e.Applied {
		s.notify(b.CustomerID, "Your payment will be refunded",
			fmt.Sprintf("<p>Payment <b>%s</b> of Rp %s was received after booking %s could no longer accept it. Our team will refund it.</p>",
				html.EscapeString(p.OrderID), p.Amount.StringFixed(0), html.EscapeString(b.BookingCode)))
		return
	}
	s.notify(b.CustomerID, "Payment received for "+b.BookingCode,
		fmt.Sprintf("<p>We received Rp %s for booking <b>%s</b>.</p><p>Paid so far: Rp %s of Rp %s. Status: %s.</p>",
			p.Amount.StringFixed(0), html.EscapeString(b.BookingCode), b.PaidAmount.StringFixed(0), b.TotalAmount.StringFixed(0), b.Status))
}

func (s *EmailSink) BookingChanged(e events.BookingEvent) {
	b := e.Booking
	switch b.Status {
	case models.BookingCancelled:
		reason := "no reason given"
		if e.Reason != "" {
			reason = e.Reason
		}
		s.notify(b.CustomerID, "Booking "+b.BookingCode+" cancelled",
			fmt.Sprintf("<p>Booking <b>%s</b> was cancelled: %s.</p>", html.EscapeString(b.BookingCode), html.EscapeString(reason)))
	case models.BookingExpired:
		s.notify(b.CustomerID, "Booking "+b.BookingCode+" expired",
			fmt.Sprintf("<p>Booking <b>%s</b> expired because no payment was completed in time.</p>", html.EscapeString(b.BookingCode)))
	}
}

func (s *EmailSink) PayoutChanged(e events.PayoutEvent) {
	p := e.Payout
	switch p.Status {
	case models.PayoutApproved:
		s.notify(p.AdminKosID, "Withdrawal approved",
			fmt.Sprintf("<p>Your withdrawal of Rp %s was approved and will be transferred shortly.</p>", p.Amount.StringFixed(0)))
	case models.PayoutRejected:
		reason := ""
		if p.RejectionReason != nil {
			reason = *p.RejectionReason
		}
		s.notify(p.AdminKosID, "Withdrawal rejected",
			fmt.Sprintf("<p>Your withdrawal of Rp %s was rejected: %s.</p>", p.Amount.StringFixed(0), html.EscapeString(reason)))
	case models.PayoutCompleted:
		s.notify(p.AdminKosID, "Withdrawal transferred",
			fmt.Sprintf("<p>Your withdrawal of Rp %s has been transferred.</p>", p.Amount.StringFixed(0)))
	}
}
