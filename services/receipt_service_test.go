package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIDR(t *testing.T) {
	assert.Equal(t, "Rp 0", formatIDR(idr(0)))
	assert.Equal(t, "Rp 950", formatIDR(idr(950)))
	assert.Equal(t, "Rp 2.000.000", formatIDR(idr(2_000_000)))
	assert.Equal(t, "Rp 12.500", formatIDR(idr(12_500)))
	assert.Equal(t, "-Rp 1.000", formatIDR(idr(-1000)))
}

func TestRenderReceiptHTML(t *testing.T) {
	checkOut := date(2024, 11, 1)
	method := "bank_transfer"
	b := &models.Booking{
		BookingCode:  "BK240801ABCDEF",
		CheckInDate:  date(2024, 8, 1),
		CheckOutDate: &checkOut,
		LeaseType:    models.LeaseMonthly,
		TotalAmount:  idr(6_000_000),
		PaidAmount:   idr(2_000_000),
		Property:     models.Property{Name: "Kos <Melati>"},
	}
	p := &models.Payment{OrderID: "BK240801ABCDEF-1A2B3C4D", PaymentType: models.PaymentTypeDeposit, Amount: idr(2_000_000), PaymentMethod: &method}

	html, err := renderReceiptHTML(p, b, date(2024, 8, 2), time.UTC)
	require.NoError(t, err)

	assert.Contains(t, html, "BK240801ABCDEF-1A2B3C4D")
	assert.Contains(t, html, "Rp 2.000.000")
	assert.Contains(t, html, "Rp 6.000.000")
	assert.Contains(t, html, "01 Nov 2024")
	assert.Contains(t, html, "bank_transfer")
	assert.Contains(t, html, "Kos &lt;Melati&gt;")
}

type stubPayments struct {
	PaymentService
	payment *models.Payment
	err     error
}

func (s stubPayments) GetByOrderID(context.Context, auth.Actor, string) (*models.Payment, error) {
	return s.payment, s.err
}

type stubRenderer struct {
	html string
	err  error
}

func (r *stubRenderer) Render(_ context.Context, html string) ([]byte, error) {
	r.html = html
	return []byte("%PDF-1.4"), r.err
}

type stubStorage struct{ uploaded string }

func (s *stubStorage) SignUpload(folder string) (*UploadSignature, error) {
	return &UploadSignature{Folder: folder}, nil
}

func (s *stubStorage) UploadRaw(_ context.Context, _ []byte, folder, publicID string) (string, error) {
	s.uploaded = folder + "/" + publicID
	return "https://files.example/" + publicID + ".pdf", nil
}

func TestReceiptService_Generate(t *testing.T) {
	p := &models.Payment{
		OrderID:     "BK1-ABCD",
		Status:      models.PaymentSuccess,
		PaymentType: models.PaymentTypeFull,
		Amount:      idr(1_000_000),
		Booking:     models.Booking{BookingCode: "BK1", CheckInDate: date(2024, 8, 1), TotalAmount: idr(1_000_000), PaidAmount: idr(1_000_000)},
	}
	renderer := &stubRenderer{}
	storage := &stubStorage{}
	svc := NewReceiptService(stubPayments{payment: p}, renderer, storage, time.UTC)

	receipt, err := svc.Generate(context.Background(), auth.Actor{UserID: uuid.New(), Role: auth.RoleCustomer}, "BK1-ABCD")
	require.NoError(t, err)

	assert.Equal(t, "receipt-BK1-ABCD.pdf", receipt.FileName)
	assert.Equal(t, []byte("%PDF-1.4"), receipt.PDF)
	assert.Equal(t, "https://files.example/BK1-ABCD.pdf", receipt.URL)
	assert.Equal(t, ReceiptFolder+"/BK1-ABCD", storage.uploaded)
	assert.Contains(t, renderer.html, "Rp 1.000.000")
}

func TestReceiptService_RequiresSuccessfulPayment(t *testing.T) {
	p := &models.Payment{OrderID: "BK1-ABCD", Status: models.PaymentPending}
	svc := NewReceiptService(stubPayments{payment: p}, &stubRenderer{}, nil, nil)

	_, err := svc.Generate(context.Background(), auth.Actor{Role: auth.RoleCustomer}, "BK1-ABCD")
	assert.Equal(t, apperror.KindBusinessRule, apperror.KindOf(err))
}

func TestReceiptService_RendererFailure(t *testing.T) {
	p := &models.Payment{OrderID: "BK1-ABCD", Status: models.PaymentSuccess}
	svc := NewReceiptService(stubPayments{payment: p}, &stubRenderer{err: errors.New("no chrome")}, nil, nil)

	_, err := svc.Generate(context.Background(), auth.Actor{Role: auth.RoleCustomer}, "BK1-ABCD")
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}
