package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/netkrida/myhome-sub004/payments"
	"github.com/netkrida/myhome-sub004/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock services ---

type mockBookingService struct {
	services.BookingService
	createFn func(ctx context.Context, actor auth.Actor, in services.CreateBookingInput) (*models.Booking, error)
	getFn    func(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error)
	cancelFn func(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*models.Booking, error)
}

func (m *mockBookingService) Create(ctx context.Context, actor auth.Actor, in services.CreateBookingInput) (*models.Booking, error) {
	return m.createFn(ctx, actor, in)
}

func (m *mockBookingService) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error) {
	return m.getFn(ctx, actor, id)
}

func (m *mockBookingService) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*models.Booking, error) {
	return m.cancelFn(ctx, actor, id, reason)
}

type mockExtensionService struct {
	services.ExtensionService
	quoteFn func(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, periods int) (*services.ExtensionQuote, error)
}

func (m *mockExtensionService) Quote(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, periods int) (*services.ExtensionQuote, error) {
	return m.quoteFn(ctx, actor, bookingID, periods)
}

type mockPaymentService struct {
	services.PaymentService
	notifyFn  func(ctx context.Context, n payments.Notification) (*services.ReconcileResult, error)
	confirmFn func(ctx context.Context, actor auth.Actor, orderID string) (*services.ReconcileResult, error)
}

func (m *mockPaymentService) HandleNotification(ctx context.Context, n payments.Notification) (*services.ReconcileResult, error) {
	return m.notifyFn(ctx, n)
}

func (m *mockPaymentService) ConfirmFromClient(ctx context.Context, actor auth.Actor, orderID string) (*services.ReconcileResult, error) {
	return m.confirmFn(ctx, actor, orderID)
}

type mockReceiptService struct {
	generateFn func(ctx context.Context, actor auth.Actor, orderID string) (*services.Receipt, error)
}

func (m *mockReceiptService) Generate(ctx context.Context, actor auth.Actor, orderID string) (*services.Receipt, error) {
	return m.generateFn(ctx, actor, orderID)
}

type mockRetrier struct {
	attempts []int
	err      error
}

func (m *mockRetrier) PublishRetry(_ context.Context, _ payments.Notification, attempt int) error {
	m.attempts = append(m.attempts, attempt)
	return m.err
}

type mockPayoutService struct {
	services.PayoutService
	completeFn func(ctx context.Context, actor auth.Actor, id uuid.UUID, attachments []services.AttachmentInput) (*models.Payout, error)
}

func (m *mockPayoutService) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID, attachments []services.AttachmentInput) (*models.Payout, error) {
	return m.completeFn(ctx, actor, id, attachments)
}

type mockLedgerService struct {
	balanceFn func(ctx context.Context, actor auth.Actor, ownerID uuid.UUID) (*services.Balance, error)
}

func (m *mockLedgerService) ComputeBalance(ctx context.Context, actor auth.Actor, ownerID uuid.UUID) (*services.Balance, error) {
	return m.balanceFn(ctx, actor, ownerID)
}

type mockStorage struct {
	services.FileStorage
	folders []string
}

func (m *mockStorage) SignUpload(folder string) (*services.UploadSignature, error) {
	m.folders = append(m.folders, folder)
	return &services.UploadSignature{Signature: "sig", Folder: folder}, nil
}

// --- Helpers ---

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

func newTestApp(actor auth.Actor) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("actor", actor)
		return c.Next()
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, testEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)

	var env testEnvelope
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

var customer = auth.Actor{UserID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: auth.RoleCustomer}

// --- Booking handler ---

func TestCreateBooking_Handler_Success(t *testing.T) {
	roomID := uuid.New()
	var got services.CreateBookingInput
	svc := &mockBookingService{
		createFn: func(ctx context.Context, actor auth.Actor, in services.CreateBookingInput) (*models.Booking, error) {
			assert.Equal(t, customer.UserID, actor.UserID)
			got = in
			return &models.Booking{ID: uuid.New(), BookingCode: "BK-TEST", Status: models.BookingUnpaid}, nil
		},
	}
	app := newTestApp(customer)
	app.Post("/bookings", NewBookingHandler(svc, nil).CreateBooking)

	body := `{"room_id":"` + roomID.String() + `","lease_type":"MONTHLY","check_in_date":"2024-07-01"}`
	resp, env := doRequest(t, app, http.MethodPost, "/bookings", body)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), "BK-TEST")
	assert.Equal(t, roomID, got.RoomID)
	assert.Equal(t, models.LeaseType("MONTHLY"), got.LeaseType)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), got.CheckIn)
	assert.Nil(t, got.CheckOut)
}

func TestCreateBooking_Handler_Validation(t *testing.T) {
	app := newTestApp(customer)
	app.Post("/bookings", NewBookingHandler(&mockBookingService{}, nil).CreateBooking)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"room_id":`},
		{"missing room", `{"lease_type":"MONTHLY","check_in_date":"2024-07-01"}`},
		{"unknown lease", `{"room_id":"` + uuid.NewString() + `","lease_type":"HOURLY","check_in_date":"2024-07-01"}`},
		{"bad date", `{"room_id":"` + uuid.NewString() + `","lease_type":"MONTHLY","check_in_date":"01/07/2024"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodPost, "/bookings", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(apperror.KindValidation), env.Error.Code)
		})
	}
}

func TestGetBooking_Handler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    apperror.Kind
		message string
	}{
		{"forbidden", apperror.Forbidden("not your booking"), http.StatusForbidden, apperror.KindForbidden, "not your booking"},
		{"not found", apperror.NotFound("booking"), http.StatusNotFound, apperror.KindNotFound, ""},
		{"conflict", apperror.Conflict("room is taken"), http.StatusConflict, apperror.KindConflict, "room is taken"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, apperror.KindInternal, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				getFn: func(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Booking, error) {
					return nil, tt.err
				},
			}
			app := newTestApp(customer)
			app.Get("/bookings/:id", NewBookingHandler(svc, nil).GetBooking)

			resp, env := doRequest(t, app, http.MethodGet, "/bookings/"+uuid.NewString(), "")
			assert.Equal(t, tt.status, resp.StatusCode)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(tt.code), env.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Error.Message)
			}
		})
	}
}

func TestGetBooking_Handler_InvalidID(t *testing.T) {
	app := newTestApp(customer)
	app.Get("/bookings/:id", NewBookingHandler(&mockBookingService{}, nil).GetBooking)

	resp, env := doRequest(t, app, http.MethodGet, "/bookings/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid id", env.Error.Message)
}

func TestCancelBooking_Handler_OptionalBody(t *testing.T) {
	var reasons []string
	svc := &mockBookingService{
		cancelFn: func(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*models.Booking, error) {
			reasons = append(reasons, reason)
			return &models.Booking{ID: id, Status: models.BookingCancelled}, nil
		},
	}
	app := newTestApp(customer)
	app.Post("/bookings/:id/cancel", NewBookingHandler(svc, nil).Cancel())

	resp, _ := doRequest(t, app, http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, app, http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", `{"reason":"plans changed"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{"", "plans changed"}, reasons)
}

func TestQuoteExtension_Handler_Periods(t *testing.T) {
	var periods []int
	ext := &mockExtensionService{
		quoteFn: func(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, n int) (*services.ExtensionQuote, error) {
			periods = append(periods, n)
			return &services.ExtensionQuote{BookingID: bookingID, Eligible: true, Periods: n}, nil
		},
	}
	app := newTestApp(customer)
	app.Get("/bookings/:id/extension-quote", NewBookingHandler(&mockBookingService{}, ext).QuoteExtension)

	id := uuid.NewString()
	resp, _ := doRequest(t, app, http.MethodGet, "/bookings/"+id+"/extension-quote", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, app, http.MethodGet, "/bookings/"+id+"/extension-quote?periods=3", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, app, http.MethodGet, "/bookings/"+id+"/extension-quote?periods=three", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, []int{1, 3}, periods)
}

// --- Payment handler ---

func TestHandleWebhook_Handler(t *testing.T) {
	settled := &services.ReconcileResult{Payment: models.Payment{OrderID: "BK1-A", Status: models.PaymentSuccess}, Applied: true}

	tests := []struct {
		name     string
		result   *services.ReconcileResult
		err      error
		retrier  *mockRetrier
		status   int
		attempts []int
	}{
		{name: "applied", result: settled, status: http.StatusOK},
		{name: "bad signature", err: apperror.Forbidden("invalid signature"), status: http.StatusForbidden},
		{name: "unknown order is acknowledged", err: apperror.NotFound("payment"), status: http.StatusOK},
		{name: "amount mismatch is acknowledged", err: apperror.BusinessRule("gross amount mismatch"), status: http.StatusOK},
		{name: "transient error is queued", err: errors.New("deadlock detected"), retrier: &mockRetrier{}, status: http.StatusAccepted, attempts: []int{1}},
		{name: "transient error without broker", err: errors.New("deadlock detected"), status: http.StatusInternalServerError},
		{name: "broker down", err: errors.New("deadlock detected"), retrier: &mockRetrier{err: errors.New("closed")}, status: http.StatusInternalServerError, attempts: []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentService{
				notifyFn: func(ctx context.Context, n payments.Notification) (*services.ReconcileResult, error) {
					assert.Equal(t, "BK1-A", n.OrderID)
					assert.Equal(t, "settlement", n.TransactionStatus)
					return tt.result, tt.err
				},
			}
			var retrier NotificationRetrier
			if tt.retrier != nil {
				retrier = tt.retrier
			}
			app := newTestApp(auth.Actor{})
			app.Post("/payments/webhook", NewPaymentHandler(svc, nil, retrier).HandleWebhook)

			body := `{"order_id":"BK1-A","status_code":"200","transaction_status":"settlement","gross_amount":"2000000.00","signature_key":"abc"}`
			resp, _ := doRequest(t, app, http.MethodPost, "/payments/webhook", body)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.retrier != nil {
				assert.Equal(t, tt.attempts, tt.retrier.attempts)
			}
		})
	}
}

func TestConfirmPayment_Handler(t *testing.T) {
	svc := &mockPaymentService{
		confirmFn: func(ctx context.Context, actor auth.Actor, orderID string) (*services.ReconcileResult, error) {
			assert.Equal(t, customer, actor)
			return &services.ReconcileResult{Payment: models.Payment{OrderID: orderID, Status: models.PaymentSuccess}, Duplicate: true}, nil
		},
	}
	app := newTestApp(customer)
	app.Post("/payments/confirm", NewPaymentHandler(svc, nil, nil).ConfirmPayment)

	resp, env := doRequest(t, app, http.MethodPost, "/payments/confirm", `{"order_id":"BK1-A","transaction_status":"settlement"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data reconcileResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "BK1-A", data.Payment.OrderID)
	assert.True(t, data.Duplicate)
	assert.False(t, data.Applied)

	resp, _ = doRequest(t, app, http.MethodPost, "/payments/confirm", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetReceipt_Handler(t *testing.T) {
	receipts := &mockReceiptService{
		generateFn: func(ctx context.Context, actor auth.Actor, orderID string) (*services.Receipt, error) {
			if orderID != "BK1-A" {
				return nil, apperror.NotFound("payment")
			}
			return &services.Receipt{FileName: "receipt-BK1-A.pdf", PDF: []byte("%PDF-1.4")}, nil
		},
	}
	app := newTestApp(customer)
	app.Get("/payments/:orderId/receipt", NewPaymentHandler(nil, receipts, nil).GetReceipt)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/payments/BK1-A/receipt", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "receipt-BK1-A.pdf")
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "%PDF-1.4", string(body))

	resp, _ = doRequest(t, app, http.MethodGet, "/payments/BK9-Z/receipt", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- Payout and upload handlers ---

func TestCompletePayout_Handler_RequiresAttachment(t *testing.T) {
	called := 0
	svc := &mockPayoutService{
		completeFn: func(ctx context.Context, actor auth.Actor, id uuid.UUID, attachments []services.AttachmentInput) (*models.Payout, error) {
			called++
			require.Len(t, attachments, 1)
			assert.Equal(t, "transfer.pdf", attachments[0].FileName)
			return &models.Payout{ID: id, Status: models.PayoutCompleted}, nil
		},
	}
	admin := auth.Actor{UserID: uuid.New(), Role: auth.RoleSuperAdmin}
	app := newTestApp(admin)
	app.Post("/payouts/:id/complete", NewPayoutHandler(svc, nil).CompletePayout)

	target := "/payouts/" + uuid.NewString() + "/complete"
	resp, _ := doRequest(t, app, http.MethodPost, target, `{"attachments":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodPost, target, `{"attachments":[{"file_url":"https://res.cloudinary.com/x/transfer.pdf","file_name":"transfer.pdf"}]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, called)
}

func TestGetBalance_Handler_OwnerQuery(t *testing.T) {
	owner := uuid.New()
	var asked []uuid.UUID
	ledger := &mockLedgerService{
		balanceFn: func(ctx context.Context, actor auth.Actor, ownerID uuid.UUID) (*services.Balance, error) {
			asked = append(asked, ownerID)
			return &services.Balance{OwnerID: ownerID, Available: decimal.NewFromInt(1_000_000)}, nil
		},
	}
	app := newTestApp(auth.Actor{UserID: owner, Role: auth.RoleAdminKos})
	app.Get("/balance", NewPayoutHandler(nil, ledger).GetBalance)

	resp, _ := doRequest(t, app, http.MethodGet, "/balance", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, app, http.MethodGet, "/balance?owner_id="+owner.String(), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, app, http.MethodGet, "/balance?owner_id=nope", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, []uuid.UUID{uuid.Nil, owner}, asked)
}

func TestGenerateUploadSignature_Handler(t *testing.T) {
	storage := &mockStorage{}
	app := newTestApp(customer)
	app.Get("/uploads/signature", NewUploadHandler(storage).GenerateUploadSignature)

	resp, env := doRequest(t, app, http.MethodGet, "/uploads/signature", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), services.PayoutProofFolder)

	resp, _ = doRequest(t, app, http.MethodGet, "/uploads/signature?folder=../secrets", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{services.PayoutProofFolder}, storage.folders)

	unconfigured := newTestApp(customer)
	unconfigured.Get("/uploads/signature", NewUploadHandler(nil).GenerateUploadSignature)
	resp, env = doRequest(t, unconfigured, http.MethodGet, "/uploads/signature", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(apperror.KindBusinessRule), env.Error.Code)
}

func TestErrorHandler_FiberErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/ws", WebSocketUpgrade, func(c *fiber.Ctx) error { return nil })

	resp, env := doRequest(t, app, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.Equal(t, "UPGRADE_REQUIRED", env.Error.Code)

	resp, env = doRequest(t, app, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(apperror.KindNotFound), env.Error.Code)
}
