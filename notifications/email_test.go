package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/events"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBrevoService_Unconfigured(t *testing.T) {
	assert.Nil(t, NewBrevoService("", "noreply@myhome.local", "MyHome"))
}

func TestBrevoService_Send(t *testing.T) {
	var got brevoPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId":"<1@brevo>"}`))
	}))
	defer srv.Close()

	svc := NewBrevoService("key-123", "noreply@myhome.local", "MyHome")
	svc.URL = srv.URL

	err := svc.Send(context.Background(), "budi@example.com", "", "Hello", "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Subject)
	assert.Equal(t, "budi", got.To[0]["name"])
	assert.Equal(t, "MyHome", got.Sender["name"])
}

func TestBrevoService_SendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"unauthorized"}`))
	}))
	defer srv.Close()

	svc := NewBrevoService("bad", "noreply@myhome.local", "MyHome")
	svc.URL = srv.URL

	assert.Error(t, svc.Send(context.Background(), "not-an-email", "", "x", "x"))
	assert.Error(t, svc.Send(context.Background(), "budi@example.com", "Budi", "x", "x"))
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct{ sent []sentMail }

func (m *fakeMailer) Send(_ context.Context, toEmail, _, subject, htmlContent string) error {
	m.sent = append(m.sent, sentMail{to: toEmail, subject: subject, body: htmlContent})
	return nil
}

type fakeDirectory map[uuid.UUID]models.User

func (d fakeDirectory) Lookup(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &u, nil
}

func newTestSink(users fakeDirectory) (*EmailSink, *fakeMailer) {
	mailer := &fakeMailer{}
	sink := NewEmailSink(mailer, users)
	sink.run = func(f func()) { f() }
	return sink, mailer
}

func TestEmailSink_PaymentSettled(t *testing.T) {
	customer := uuid.New()
	sink, mailer := newTestSink(fakeDirectory{customer: {ID: customer, Email: "siti@example.com", FullName: "Siti"}})

	sink.PaymentUpdated(events.PaymentEvent{
		Payment: models.Payment{OrderID: "BK1-A", Status: models.PaymentSuccess, Amount: decimal.NewFromInt(2_000_000)},
		Booking: models.Booking{BookingCode: "BK1", CustomerID: customer, Status: models.BookingDepositPaid, PaidAmount: decimal.NewFromInt(2_000_000), TotalAmount: decimal.NewFromInt(6_000_000)},
		Applied: true,
	})
	sink.PaymentUpdated(events.PaymentEvent{Payment: models.Payment{Status: models.PaymentExpired}, Booking: models.Booking{CustomerID: customer}})

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "siti@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].subject, "BK1")
	assert.Contains(t, mailer.sent[0].body, "Rp 2000000")
}

func TestEmailSink_RefundAndPayoutNotices(t *testing.T) {
	customer, owner := uuid.New(), uuid.New()
	sink, mailer := newTestSink(fakeDirectory{
		customer: {ID: customer, Email: "siti@example.com"},
		owner:    {ID: owner, Email: "owner@example.com"},
	})
	reason := "account <closed>"

	sink.PaymentUpdated(events.PaymentEvent{Payment: models.Payment{Status: models.PaymentSuccess}, Booking: models.Booking{CustomerID: customer}})
	sink.PayoutChanged(events.PayoutEvent{Payout: models.Payout{AdminKosID: owner, Status: models.PayoutRejected, RejectionReason: &reason}})
	sink.PayoutChanged(events.PayoutEvent{Payout: models.Payout{AdminKosID: owner, Status: models.PayoutPending}})

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "Your payment will be refunded", mailer.sent[0].subject)
	assert.Equal(t, "owner@example.com", mailer.sent[1].to)
	assert.Contains(t, mailer.sent[1].body, "account &lt;closed&gt;")
}

func TestEmailSink_UnknownRecipientIsSkipped(t *testing.T) {
	sink, mailer := newTestSink(fakeDirectory{})
	sink.BookingChanged(events.BookingEvent{Booking: models.Booking{CustomerID: uuid.New(), Status: models.BookingExpired}})
	assert.Empty(t, mailer.sent)
}
