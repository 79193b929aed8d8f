package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/middleware"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/netkrida/myhome-sub004/services"
	"github.com/shopspring/decimal"
)

type BookingHandler struct {
	bookings   services.BookingService
	extensions services.ExtensionService
}

func NewBookingHandler(bookings services.BookingService, extensions services.ExtensionService) *BookingHandler {
	return &BookingHandler{bookings: bookings, extensions: extensions}
}

type CreateBookingRequest struct {
	RoomID        string           `json:"room_id" validate:"required,uuid"`
	LeaseType     string           `json:"lease_type" validate:"required,oneof=DAILY WEEKLY MONTHLY QUARTERLY YEARLY"`
	CheckInDate   string           `json:"check_in_date" validate:"required"`
	CheckOutDate  string           `json:"check_out_date"`
	DepositAmount *decimal.Decimal `json:"deposit_amount"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ApplyExtensionRequest struct {
	Periods int  `json:"periods" validate:"required,min=1,max=24"`
	Deposit bool `json:"deposit"`
}

func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	var req CreateBookingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	checkIn, err := parseDate(req.CheckInDate, "check_in_date")
	if err != nil {
		return err
	}
	var checkOut *time.Time
	if req.CheckOutDate != "" {
		co, err := parseDate(req.CheckOutDate, "check_out_date")
		if err != nil {
			return err
		}
		checkOut = &co
	}

	booking, err := h.bookings.Create(c.UserContext(), middleware.ActorFrom(c), services.CreateBookingInput{
		RoomID:        uuid.MustParse(req.RoomID),
		LeaseType:     models.LeaseType(req.LeaseType),
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		DepositAmount: req.DepositAmount,
	})
	if err != nil {
		return err
	}
	return created(c, booking)
}

func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	booking, err := h.bookings.Get(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}
	return ok(c, booking)
}

func (h *BookingHandler) ListBookingPayments(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	list, err := h.bookings.ListPayments(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}
	return ok(c, list)
}

// lifecycle adapts the single-id booking operations to fiber handlers.
func (h *BookingHandler) lifecycle(op func(*fiber.Ctx, uuid.UUID) (*models.Booking, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuidParam(c, "id")
		if err != nil {
			return err
		}
		booking, err := op(c, id)
		if err != nil {
			return err
		}
		return ok(c, booking)
	}
}

func (h *BookingHandler) CheckIn() fiber.Handler {
	return h.lifecycle(func(c *fiber.Ctx, id uuid.UUID) (*models.Booking, error) {
		return h.bookings.CheckIn(c.UserContext(), middleware.ActorFrom(c), id)
	})
}

func (h *BookingHandler) CheckOut() fiber.Handler {
	return h.lifecycle(func(c *fiber.Ctx, id uuid.UUID) (*models.Booking, error) {
		return h.bookings.CheckOut(c.UserContext(), middleware.ActorFrom(c), id)
	})
}

func (h *BookingHandler) Complete() fiber.Handler {
	return h.lifecycle(func(c *fiber.Ctx, id uuid.UUID) (*models.Booking, error) {
		return h.bookings.Complete(c.UserContext(), middleware.ActorFrom(c), id)
	})
}

func (h *BookingHandler) Validate() fiber.Handler {
	return h.lifecycle(func(c *fiber.Ctx, id uuid.UUID) (*models.Booking, error) {
		return h.bookings.Validate(c.UserContext(), middleware.ActorFrom(c), id)
	})
}

func (h *BookingHandler) Cancel() fiber.Handler {
	return h.lifecycle(func(c *fiber.Ctx, id uuid.UUID) (*models.Booking, error) {
		var req CancelBookingRequest
		if len(c.Body()) > 0 {
			if err := parseBody(c, &req); err != nil {
				return nil, err
			}
		}
		return h.bookings.Cancel(c.UserContext(), middleware.ActorFrom(c), id, req.Reason)
	})
}

func (h *BookingHandler) QuoteExtension(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	periods, err := strconv.Atoi(c.Query("periods", "1"))
	if err != nil {
		return apperror.Validation("periods must be a number")
	}
	quote, err := h.extensions.Quote(c.UserContext(), middleware.ActorFrom(c), id, periods)
	if err != nil {
		return err
	}
	return ok(c, quote)
}

func (h *BookingHandler) ApplyExtension(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req ApplyExtensionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payment, quote, err := h.extensions.Apply(c.UserContext(), middleware.ActorFrom(c), id, req.Periods, req.Deposit)
	if err != nil {
		return err
	}
	return created(c, fiber.Map{"payment": payment, "quote": quote})
}
