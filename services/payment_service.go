package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/events"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/netkrida/myhome-sub004/payments"
	"github.com/netkrida/myhome-sub004/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentConfig struct {
	ServerKey         string
	DepositPercentage decimal.Decimal
	PaymentWindow     time.Duration
	Timezone          *time.Location
}

// ExtensionTerms is attached to an extension payment and applied to the
// booking in the same transaction that settles the payment.
type ExtensionTerms struct {
	Periods     int
	NewCheckOut time.Time
	Total       decimal.Decimal
	Amount      decimal.Decimal
}

type ReconcileResult struct {
	Payment models.Payment
	Booking *models.Booking
	// Applied is true when the booking was credited by this call.
	Applied bool
	// Duplicate is true when the notification changed nothing because the
	// payment was already terminal.
	Duplicate bool
}

type PaymentService interface {
	CreateIntent(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, paymentType models.PaymentType) (*models.Payment, error)
	CreateExtensionIntent(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, paymentType models.PaymentType, terms ExtensionTerms, recheck func(*gorm.DB, *models.Booking) error) (*models.Payment, error)
	VoidIntent(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, paymentType models.PaymentType) (*ReconcileResult, error)
	HandleNotification(ctx context.Context, n payments.Notification) (*ReconcileResult, error)
	ConfirmFromClient(ctx context.Context, actor auth.Actor, orderID string) (*ReconcileResult, error)
	Reconcile(ctx context.Context, n payments.Notification) (*ReconcileResult, error)
	ExpirePayment(ctx context.Context, orderID string) (*ReconcileResult, error)
	GetByOrderID(ctx context.Context, actor auth.Actor, orderID string) (*models.Payment, error)
}

type paymentService struct {
	db      *gorm.DB
	gateway payments.Gateway
	events  events.Sink
	cfg     PaymentConfig
	now     Clock
}

func NewPaymentService(db *gorm.DB, gateway payments.Gateway, sink events.Sink, cfg PaymentConfig, now Clock) PaymentService {
	if sink == nil {
		sink = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.PaymentWindow <= 0 {
		cfg.PaymentWindow = 24 * time.Hour
	}
	if !cfg.DepositPercentage.IsPositive() {
		cfg.DepositPercentage = decimal.NewFromFloat(0.30)
	}
	return &paymentService{db: db, gateway: gateway, events: sink, cfg: cfg, now: now}
}

// intentPlan describes one payment attempt before it is persisted.
type intentPlan struct {
	paymentType models.PaymentType
	amount      func(b *models.Booking, room *models.Room) (decimal.Decimal, error)
	extension   *ExtensionTerms
	// recheck runs once before the gateway call and again under the booking lock.
	recheck func(*gorm.DB, *models.Booking) error
}

func (s *paymentService) CreateIntent(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, paymentType models.PaymentType) (*models.Payment, error) {
	if !paymentType.Valid() {
		return nil, apperror.Validation("invalid payment type %q", paymentType)
	}
	return s.createIntent(ctx, actor, bookingID, intentPlan{
		paymentType: paymentType,
		amount: func(b *models.Booking, room *models.Room) (decimal.Decimal, error) {
			return s.bookingAmount(b, room, paymentType)
		},
	})
}

func (s *paymentService) CreateExtensionIntent(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, paymentType models.PaymentType, terms ExtensionTerms, recheck func(*gorm.DB, *models.Booking) error) (*models.Payment, error) {
	if !paymentType.Valid() {
		return nil, apperror.Validation("invalid payment type %q", paymentType)
	}
	if terms.Periods < 1 || !terms.Amount.IsPositive() || terms.Amount.GreaterThan(terms.Total) {
		return nil, apperror.Validation("invalid extension terms")
	}
	return s.createIntent(ctx, actor, bookingID, intentPlan{
		paymentType: paymentType,
		amount: func(*models.Booking, *models.Room) (decimal.Decimal, error) {
			return terms.Amount, nil
		},
		extension: &terms,
		recheck:   recheck,
	})
}

// DepositFor returns the deposit due on a booking: the amount fixed at
// booking time, or the room's (or default) percentage of the total.
func DepositFor(b *models.Booking, room *models.Room, defaultPct decimal.Decimal) decimal.Decimal {
	if b.DepositAmount != nil && b.DepositAmount.IsPositive() {
		return decimal.Min(*b.DepositAmount, b.TotalAmount)
	}
	pct := defaultPct
	if room != nil && room.DepositPercentage != nil && room.DepositPercentage.IsPositive() {
		pct = *room.DepositPercentage
	}
	return decimal.Min(b.TotalAmount.Mul(pct).Round(0), b.TotalAmount)
}

func (s *paymentService) bookingAmount(b *models.Booking, room *models.Room, paymentType models.PaymentType) (decimal.Decimal, error) {
	switch paymentType {
	case models.PaymentTypeDeposit:
		if b.PaidAmount.IsPositive() {
			return decimal.Zero, apperror.BusinessRule("deposit has already been paid for this booking")
		}
		return DepositFor(b, room, s.cfg.DepositPercentage), nil
	default:
		remaining := b.Remaining()
		if !remaining.IsPositive() {
			return decimal.Zero, apperror.BusinessRule("booking is already fully paid")
		}
		return remaining, nil
	}
}

// checkPending enforces one pending attempt per type and keeps the sum of
// pending booking payments within the outstanding amount.
func checkPending(tx *gorm.DB, b *models.Booking, plan intentPlan, amount decimal.Decimal) error {
	var pending []models.Payment
	if err := tx.Where("booking_id = ? AND status = ?", b.ID, models.PaymentPending).Find(&pending).Error; err != nil {
		return dbError(err, "payment")
	}
	committed := decimal.Zero
	for _, p := range pending {
		if p.PaymentType == plan.paymentType {
			return apperror.BusinessRule("a pending %s payment already exists for this booking; void it first", p.PaymentType)
		}
		if plan.extension != nil && p.IsExtension() {
			return apperror.BusinessRule("an extension payment is already pending for this booking")
		}
		if !p.IsExtension() {
			committed = committed.Add(p.Amount)
		}
	}
	if plan.extension == nil && committed.Add(amount).GreaterThan(b.Remaining()) {
		return apperror.BusinessRule("pending payments already cover the outstanding amount; void them first")
	}
	return nil
}

func (s *paymentService) createIntent(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, plan intentPlan) (*models.Payment, error) {
	db := s.db.WithContext(ctx)

	b, err := findBooking(db, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(auth.RoleCustomer) || actor.UserID != b.CustomerID {
		return nil, apperror.Forbidden("only the booking's customer can pay for it")
	}
	if b.Status.Terminal() {
		return nil, apperror.BusinessRule("cannot pay for a booking with status %s", b.Status)
	}
	if plan.recheck != nil {
		if err := plan.recheck(db, b); err != nil {
			return nil, err
		}
	}
	var room models.Room
	if err := db.First(&room, "id = ?", b.RoomID).Error; err != nil {
		return nil, dbError(err, "room")
	}
	amount, err := plan.amount(b, &room)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, apperror.BusinessRule("nothing to pay for this booking")
	}
	if err := checkPending(db, b, plan, amount); err != nil {
		return nil, err
	}

	// Name and email only prefill the gateway page.
	var customer models.User
	if err := db.Select("full_name", "email").First(&customer, "id = ?", b.CustomerID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("⚠️ Could not load customer %s for booking %s: %v", b.CustomerID, b.BookingCode, err)
	}

	orderID := utils.NewOrderID(b.BookingCode)
	intent, err := s.gateway.CreateTransaction(ctx, payments.IntentRequest{
		OrderID:       orderID,
		Amount:        amount,
		ItemName:      string(plan.paymentType) + " " + b.BookingCode,
		CustomerName:  customer.FullName,
		CustomerEmail: customer.Email,
		Expiry:        s.cfg.PaymentWindow,
	})
	if err != nil {
		log.Printf("🔥 Gateway CreateTransaction failed for booking %s: %v", b.BookingCode, err)
		return nil, apperror.Gateway(err, "payment gateway is unavailable, please retry")
	}

	now := s.now()
	payment := models.Payment{
		BookingID:   b.ID,
		OrderID:     orderID,
		PaymentType: plan.paymentType,
		Amount:      amount,
		Status:      models.PaymentPending,
		SnapToken:   intent.Token,
		RedirectURL: intent.RedirectURL,
		ExpiresAt:   now.Add(s.cfg.PaymentWindow),
	}
	if plan.extension != nil {
		periods := plan.extension.Periods
		checkOut := plan.extension.NewCheckOut
		total := plan.extension.Total
		payment.ExtensionPeriods = &periods
		payment.ExtensionCheckOut = &checkOut
		payment.ExtensionTotal = &total
	}

	var previous models.BookingStatus
	var locked *models.Booking
	err = db.Transaction(func(tx *gorm.DB) error {
		lb, err := lockBooking(tx, b.ID)
		if err != nil {
			return err
		}
		if lb.Status.Terminal() {
			return apperror.BusinessRule("cannot pay for a booking with status %s", lb.Status)
		}
		if plan.recheck != nil {
			if err := plan.recheck(tx, lb); err != nil {
				return err
			}
		}
		current, err := plan.amount(lb, &room)
		if err != nil {
			return err
		}
		if !current.Equal(amount) {
			return apperror.Conflict("booking changed while the payment was being prepared, please retry")
		}
		if err := checkPending(tx, lb, plan, amount); err != nil {
			return err
		}
		if err := tx.Omit("Booking").Create(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.BusinessRule("a pending %s payment already exists for this booking; void it first", plan.paymentType)
			}
			return dbError(err, "payment")
		}
		previous = lb.Status
		if lb.Status == models.BookingUnpaid {
			lb.Status = models.BookingPending
			lb.PaymentStatus = models.PaymentStatusPending
			if err := saveBooking(tx, lb); err != nil {
				return dbError(err, "booking")
			}
		}
		locked = lb
		return nil
	})
	if err != nil {
		if expErr := s.gateway.Expire(context.WithoutCancel(ctx), orderID); expErr != nil {
			log.Printf("⚠️ Could not void orphaned gateway order %s: %v", orderID, expErr)
		}
		return nil, err
	}

	log.Printf("✅ Payment intent %s created for booking %s (%s %s)", orderID, b.BookingCode, plan.paymentType, amount)
	if locked.Status != previous {
		s.events.BookingChanged(events.BookingEvent{Booking: *locked, Previous: previous})
	}
	return &payment, nil
}

func (s *paymentService) HandleNotification(ctx context.Context, n payments.Notification) (*ReconcileResult, error) {
	if !payments.VerifySignature(n, s.cfg.ServerKey) {
		log.Printf("⚠️ Rejected notification for order %s: invalid signature", n.OrderID)
		return nil, apperror.Forbidden("invalid notification signature")
	}
	return s.Reconcile(ctx, n)
}

// Reconcile applies a gateway-reported outcome to a payment exactly once.
// The payment row lock serializes concurrent webhook and client calls; the
// loser sees a terminal status and returns without changes.
func (s *paymentService) Reconcile(ctx context.Context, n payments.Notification) (*ReconcileResult, error) {
	if n.OrderID == "" {
		return nil, apperror.Validation("order_id is required")
	}
	status, err := payments.MapStatus(n.TransactionStatus, n.FraudStatus)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, "unsupported transaction status")
	}

	var (
		result   ReconcileResult
		previous models.BookingStatus
		rejected error
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := forUpdate(tx).First(&payment, "order_id = ?", n.OrderID).Error; err != nil {
			return dbError(err, "payment")
		}
		if payment.Status.Terminal() {
			result = ReconcileResult{Payment: payment, Duplicate: true}
			return nil
		}

		if n.PaymentType != "" {
			method := n.PaymentType
			payment.PaymentMethod = &method
		}
		if ts := n.Time(s.cfg.Timezone); ts != nil {
			payment.TransactionTime = ts
		}
		if n.TransactionStatus != "" {
			gs := n.TransactionStatus
			payment.GatewayStatus = &gs
		}
		if raw, err := json.Marshal(n); err == nil {
			payment.GatewayPayload = datatypes.JSON(raw)
		}

		if status == models.PaymentPending {
			result = ReconcileResult{Payment: payment}
			return savePayment(tx, &payment)
		}

		if status == models.PaymentSuccess {
			reason, err := settlementRejection(tx, n, &payment)
			if err != nil {
				return err
			}
			if reason != "" {
				status = models.PaymentFailed
				payment.GatewayStatus = &reason
				if reason == rejectGrossMismatch {
					rejected = apperror.BusinessRule("gross amount does not match the payment amount")
				}
			} else {
				if n.TransactionID != "" {
					txID := n.TransactionID
					payment.TransactionID = &txID
				}
				booking, err := lockBooking(tx, payment.BookingID)
				if err != nil {
					return err
				}
				previous = booking.Status
				outcome, err := settle(tx, booking, &payment)
				if err != nil {
					return err
				}
				if outcome.Applied {
					if err := saveBooking(tx, booking); err != nil {
						return dbError(err, "booking")
					}
				} else {
					log.Printf("🔥 REFUND REQUIRED: order %s settled but not credited to booking %s: %s",
						payment.OrderID, booking.BookingCode, outcome.Reason)
				}
				payment.RefundRequired = !outcome.Applied
				result.Booking = booking
				result.Applied = outcome.Applied
			}
		}

		now := s.now()
		payment.Status = status
		payment.SettledAt = &now
		if err := savePayment(tx, &payment); err != nil {
			return err
		}
		result.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate && result.Payment.Status.Terminal() {
		log.Printf("✅ Payment %s reconciled as %s (applied=%t)", result.Payment.OrderID, result.Payment.Status, result.Applied)
		var booking models.Booking
		if result.Booking != nil {
			booking = *result.Booking
		}
		s.events.PaymentUpdated(events.PaymentEvent{Payment: result.Payment, Booking: booking, Applied: result.Applied})
		if result.Applied && result.Booking.Status != previous {
			s.events.BookingChanged(events.BookingEvent{Booking: *result.Booking, Previous: previous})
		}
	}
	if rejected != nil {
		return nil, rejected
	}
	return &result, nil
}

const (
	rejectGrossMismatch = "gross_amount_mismatch"
	rejectReusedTxID    = "transaction_id_reused"
)

// settlementRejection returns a reason when a settlement report cannot be
// trusted for this payment. Such payments are closed as FAILED so the booking
// can still lapse and release its room.
func settlementRejection(tx *gorm.DB, n payments.Notification, p *models.Payment) (string, error) {
	if n.GrossAmount != "" {
		gross, err := n.Gross()
		if err != nil || !gross.Equal(p.Amount) {
			log.Printf("🔥 Gross amount mismatch for order %s: gateway %q, expected %s", n.OrderID, n.GrossAmount, p.Amount)
			return rejectGrossMismatch, nil
		}
	}
	if n.TransactionID != "" {
		var used int64
		err := tx.Model(&models.Payment{}).
			Where("transaction_id = ? AND id <> ?", n.TransactionID, p.ID).
			Count(&used).Error
		if err != nil {
			return "", dbError(err, "payment")
		}
		if used > 0 {
			log.Printf("⚠️ Transaction %s already recorded on another payment, rejecting order %s", n.TransactionID, n.OrderID)
			return rejectReusedTxID, nil
		}
	}
	return "", nil
}

func savePayment(tx *gorm.DB, p *models.Payment) error {
	if err := tx.Omit("Booking").Save(p).Error; err != nil {
		return dbError(err, "payment")
	}
	return nil
}

func (s *paymentService) ConfirmFromClient(ctx context.Context, actor auth.Actor, orderID string) (*ReconcileResult, error) {
	payment, err := s.GetByOrderID(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() {
		return &ReconcileResult{Payment: *payment, Duplicate: true}, nil
	}

	n, err := s.gateway.GetStatus(ctx, orderID)
	if errors.Is(err, payments.ErrTransactionNotFound) {
		return &ReconcileResult{Payment: *payment}, nil
	}
	if err != nil {
		return nil, apperror.Gateway(err, "could not confirm payment status with the gateway")
	}
	return s.Reconcile(ctx, *n)
}

func (s *paymentService) VoidIntent(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, paymentType models.PaymentType) (*ReconcileResult, error) {
	b, err := findBooking(s.db.WithContext(ctx), bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged() && actor.UserID != b.CustomerID {
		return nil, apperror.Forbidden("you do not have access to this booking")
	}
	var payment models.Payment
	err = s.db.WithContext(ctx).
		Where("booking_id = ? AND payment_type = ? AND status = ?", bookingID, paymentType, models.PaymentPending).
		First(&payment).Error
	if err != nil {
		return nil, dbError(err, "pending payment")
	}
	return s.closeAtGateway(ctx, payment.OrderID, "cancel")
}

// ExpirePayment closes a lapsed attempt. A payment the gateway reports as
// settled is reconciled as such instead.
func (s *paymentService) ExpirePayment(ctx context.Context, orderID string) (*ReconcileResult, error) {
	return s.closeAtGateway(ctx, orderID, "expire")
}

func (s *paymentService) closeAtGateway(ctx context.Context, orderID, finalStatus string) (*ReconcileResult, error) {
	n, err := s.gateway.GetStatus(ctx, orderID)
	switch {
	case err == nil:
		if status, mapErr := payments.MapStatus(n.TransactionStatus, n.FraudStatus); mapErr == nil && status != models.PaymentPending {
			return s.Reconcile(ctx, *n)
		}
	case !errors.Is(err, payments.ErrTransactionNotFound):
		return nil, apperror.Gateway(err, "could not read payment status from the gateway")
	}

	if err := s.gateway.Expire(ctx, orderID); err != nil {
		return nil, apperror.Gateway(err, "could not void the payment at the gateway")
	}
	return s.Reconcile(ctx, payments.Notification{OrderID: orderID, TransactionStatus: finalStatus})
}

func (s *paymentService) GetByOrderID(ctx context.Context, actor auth.Actor, orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Booking.Property").First(&payment, "order_id = ?", orderID).Error; err != nil {
		return nil, dbError(err, "payment")
	}
	b := payment.Booking
	if !actor.Privileged() && !actor.CanAccessBooking(b.CustomerID, b.Property.OwnerID, b.PropertyID) {
		return nil, apperror.Forbidden("you do not have access to this payment")
	}
	return &payment, nil
}
