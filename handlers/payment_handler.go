package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/middleware"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/netkrida/myhome-sub004/payments"
	"github.com/netkrida/myhome-sub004/services"
)

// NotificationRetrier defers a verified notification that could not be
// reconciled right now.
type NotificationRetrier interface {
	PublishRetry(ctx context.Context, n payments.Notification, attempt int) error
}

type PaymentHandler struct {
	payments services.PaymentService
	receipts services.ReceiptService
	retrier  NotificationRetrier
}

// NewPaymentHandler wires the payment endpoints. retrier may be nil, in which
// case a failed webhook is answered with an error so the gateway redelivers it.
func NewPaymentHandler(payments services.PaymentService, receipts services.ReceiptService, retrier NotificationRetrier) *PaymentHandler {
	return &PaymentHandler{payments: payments, receipts: receipts, retrier: retrier}
}

type CreatePaymentRequest struct {
	BookingID   string `json:"booking_id" validate:"required,uuid"`
	PaymentType string `json:"payment_type" validate:"required,oneof=DEPOSIT FULL"`
}

type ConfirmPaymentRequest struct {
	OrderID           string `json:"order_id" validate:"required,max=64"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
}

type reconcileResponse struct {
	Payment   models.Payment  `json:"payment"`
	Booking   *models.Booking `json:"booking,omitempty"`
	Applied   bool            `json:"applied"`
	Duplicate bool            `json:"duplicate"`
}

func toReconcileResponse(r *services.ReconcileResult) reconcileResponse {
	return reconcileResponse{Payment: r.Payment, Booking: r.Booking, Applied: r.Applied, Duplicate: r.Duplicate}
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req CreatePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payment, err := h.payments.CreateIntent(c.UserContext(), middleware.ActorFrom(c), uuid.MustParse(req.BookingID), models.PaymentType(req.PaymentType))
	if err != nil {
		return err
	}
	return created(c, payment)
}

func (h *PaymentHandler) VoidPayment(c *fiber.Ctx) error {
	var req CreatePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.payments.VoidIntent(c.UserContext(), middleware.ActorFrom(c), uuid.MustParse(req.BookingID), models.PaymentType(req.PaymentType))
	if err != nil {
		return err
	}
	return ok(c, toReconcileResponse(res))
}

// ConfirmPayment is the client fallback for a webhook that has not arrived.
// The submitted status is only logged; the gateway is asked for the truth.
func (h *PaymentHandler) ConfirmPayment(c *fiber.Ctx) error {
	var req ConfirmPaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	log.Printf("Client confirmation for order %s (client reported %q, transaction %q)", req.OrderID, req.TransactionStatus, req.TransactionID)

	res, err := h.payments.ConfirmFromClient(c.UserContext(), middleware.ActorFrom(c), req.OrderID)
	if err != nil {
		return err
	}
	return ok(c, toReconcileResponse(res))
}

// permanentFailure reports errors a redelivery would hit again.
func permanentFailure(err error) bool {
	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindNotFound, apperror.KindBusinessRule:
		return true
	}
	return false
}

func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	var n payments.Notification
	if err := c.BodyParser(&n); err != nil {
		return apperror.Validation("cannot parse notification payload")
	}
	log.Printf("Received notification for order %s: %s/%s", n.OrderID, n.TransactionStatus, n.FraudStatus)

	res, err := h.payments.HandleNotification(c.UserContext(), n)
	switch {
	case err == nil:
		return ok(c, toReconcileResponse(res))
	case apperror.Is(err, apperror.KindForbidden):
		return err
	case permanentFailure(err):
		// Acknowledge so the gateway stops redelivering a notification that
		// can never apply.
		log.Printf("⚠️ Notification for order %s not applied: %v", n.OrderID, err)
		return ok(c, fiber.Map{"acknowledged": true, "applied": false})
	case h.retrier != nil:
		if pubErr := h.retrier.PublishRetry(c.UserContext(), n, 1); pubErr == nil {
			log.Printf("Notification for order %s queued for retry: %v", n.OrderID, err)
			return c.Status(fiber.StatusAccepted).JSON(Envelope{Success: true, Data: fiber.Map{"acknowledged": true, "queued": true}})
		}
	}
	return err
}

func (h *PaymentHandler) GetReceipt(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	receipt, err := h.receipts.Generate(c.UserContext(), middleware.ActorFrom(c), orderID)
	if err != nil {
		return err
	}
	if receipt.URL != "" {
		c.Set("X-Receipt-URL", receipt.URL)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+receipt.FileName+`"`)
	return c.Send(receipt.PDF)
}
