package services

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
)

//go:embed templates/receipt.html
var receiptTemplateSource string

var receiptTemplate = template.Must(template.New("receipt").Parse(receiptTemplateSource))

type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// ChromePDFRenderer prints HTML through a headless Chrome instance.
type ChromePDFRenderer struct {
	Timeout time.Duration
}

func (r ChromePDFRenderer) Render(ctx context.Context, htmlContent string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

type Receipt struct {
	FileName string
	PDF      []byte
	URL      string
}

type ReceiptService interface {
	Generate(ctx context.Context, actor auth.Actor, orderID string) (*Receipt, error)
}

type receiptService struct {
	payments PaymentService
	renderer PDFRenderer
	storage  FileStorage
	loc      *time.Location
}

// NewReceiptService builds receipts for settled payments. storage may be nil,
// in which case receipts are not archived.
func NewReceiptService(payments PaymentService, renderer PDFRenderer, storage FileStorage, loc *time.Location) ReceiptService {
	if loc == nil {
		loc = time.UTC
	}
	return &receiptService{payments: payments, renderer: renderer, storage: storage, loc: loc}
}

type receiptData struct {
	PropertyName    string
	IssuedAt        string
	BookingCode     string
	OrderID         string
	PaymentType     string
	PaymentMethod   string
	TransactionTime string
	CheckIn         string
	CheckOut        string
	LeaseType       string
	BookingTotal    string
	PaidToDate      string
	Amount          string
}

func formatIDR(d decimal.Decimal) string {
	s := d.StringFixed(0)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg, s = true, s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	if neg {
		return "-Rp " + string(out)
	}
	return "Rp " + string(out)
}

func renderReceiptHTML(p *models.Payment, b *models.Booking, issuedAt time.Time, loc *time.Location) (string, error) {
	data := receiptData{
		PropertyName:  b.Property.Name,
		IssuedAt:      issuedAt.In(loc).Format("02 Jan 2006 15:04"),
		BookingCode:   b.BookingCode,
		OrderID:       p.OrderID,
		PaymentType:   string(p.PaymentType),
		PaymentMethod: "-",
		CheckIn:       b.CheckInDate.Format("02 Jan 2006"),
		CheckOut:      "open-ended",
		LeaseType:     string(b.LeaseType),
		BookingTotal:  formatIDR(b.TotalAmount),
		PaidToDate:    formatIDR(b.PaidAmount),
		Amount:        formatIDR(p.Amount),
	}
	if p.PaymentMethod != nil {
		data.PaymentMethod = *p.PaymentMethod
	}
	if p.TransactionTime != nil {
		data.TransactionTime = p.TransactionTime.In(loc).Format("02 Jan 2006 15:04")
	}
	if b.CheckOutDate != nil {
		data.CheckOut = b.CheckOutDate.Format("02 Jan 2006")
	}

	var rendered bytes.Buffer
	if err := receiptTemplate.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func (s *receiptService) Generate(ctx context.Context, actor auth.Actor, orderID string) (*Receipt, error) {
	payment, err := s.payments.GetByOrderID(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentSuccess {
		return nil, apperror.BusinessRule("receipts are only available for successful payments")
	}

	html, err := renderReceiptHTML(payment, &payment.Booking, time.Now(), s.loc)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	pdf, err := s.renderer.Render(ctx, html)
	if err != nil {
		log.Printf("🔥 Failed to render receipt for %s: %v", orderID, err)
		return nil, apperror.Internal(err)
	}

	receipt := &Receipt{FileName: "receipt-" + orderID + ".pdf", PDF: pdf}
	if s.storage != nil {
		url, err := s.storage.UploadRaw(ctx, pdf, ReceiptFolder, orderID)
		if err != nil {
			log.Printf("⚠️ Failed to archive receipt %s: %v", orderID, err)
		} else {
			receipt.URL = url
		}
	}
	return receipt, nil
}
