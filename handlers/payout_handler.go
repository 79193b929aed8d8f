package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/middleware"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/netkrida/myhome-sub004/services"
	"github.com/shopspring/decimal"
)

type PayoutHandler struct {
	payouts services.PayoutService
	ledger  services.LedgerService
}

func NewPayoutHandler(payouts services.PayoutService, ledger services.LedgerService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts, ledger: ledger}
}

type AttachmentRequest struct {
	FileURL  string `json:"file_url" validate:"required,url"`
	FileName string `json:"file_name" validate:"required,max=255"`
}

type RequestPayoutRequest struct {
	BankAccountID string          `json:"bank_account_id" validate:"required,uuid"`
	Amount        decimal.Decimal `json:"amount"`
	Notes         string          `json:"notes" validate:"max=1000"`
}

type ApprovePayoutRequest struct {
	Notes       string              `json:"notes" validate:"max=1000"`
	Attachments []AttachmentRequest `json:"attachments" validate:"dive"`
}

type RejectPayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type CompletePayoutRequest struct {
	Attachments []AttachmentRequest `json:"attachments" validate:"required,min=1,dive"`
}

func toAttachments(in []AttachmentRequest) []services.AttachmentInput {
	out := make([]services.AttachmentInput, 0, len(in))
	for _, a := range in {
		out = append(out, services.AttachmentInput{FileURL: a.FileURL, FileName: a.FileName})
	}
	return out
}

func (h *PayoutHandler) GetBalance(c *fiber.Ctx) error {
	var ownerID uuid.UUID
	if raw := c.Query("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperror.Validation("invalid owner_id")
		}
		ownerID = id
	}
	balance, err := h.ledger.ComputeBalance(c.UserContext(), middleware.ActorFrom(c), ownerID)
	if err != nil {
		return err
	}
	return ok(c, balance)
}

func (h *PayoutHandler) RequestPayout(c *fiber.Ctx) error {
	var req RequestPayoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payout, err := h.payouts.Request(c.UserContext(), middleware.ActorFrom(c), services.PayoutRequestInput{
		BankAccountID: uuid.MustParse(req.BankAccountID),
		Amount:        req.Amount,
		Notes:         req.Notes,
	})
	if err != nil {
		return err
	}
	return created(c, payout)
}

func (h *PayoutHandler) ListPayouts(c *fiber.Ctx) error {
	filter := services.PayoutFilter{Status: models.PayoutStatus(c.Query("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		return apperror.Validation("invalid status %q", filter.Status)
	}
	if raw := c.Query("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperror.Validation("invalid owner_id")
		}
		filter.OwnerID = &id
	}
	list, err := h.payouts.List(c.UserContext(), middleware.ActorFrom(c), filter)
	if err != nil {
		return err
	}
	return ok(c, list)
}

func (h *PayoutHandler) ApprovePayout(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req ApprovePayoutRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	payout, err := h.payouts.Approve(c.UserContext(), middleware.ActorFrom(c), id, toAttachments(req.Attachments), req.Notes)
	if err != nil {
		return err
	}
	return ok(c, payout)
}

func (h *PayoutHandler) RejectPayout(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req RejectPayoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payout, err := h.payouts.Reject(c.UserContext(), middleware.ActorFrom(c), id, req.Reason)
	if err != nil {
		return err
	}
	return ok(c, payout)
}

func (h *PayoutHandler) CompletePayout(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req CompletePayoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payout, err := h.payouts.Complete(c.UserContext(), middleware.ActorFrom(c), id, toAttachments(req.Attachments))
	if err != nil {
		return err
	}
	return ok(c, payout)
}
