package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/events"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayoutRequestInput struct {
	BankAccountID uuid.UUID
	Amount        decimal.Decimal
	Notes         string
}

type AttachmentInput struct {
	FileURL  string
	FileName string
}

type PayoutFilter struct {
	OwnerID *uuid.UUID
	Status  models.PayoutStatus
}

type PayoutService interface {
	Request(ctx context.Context, actor auth.Actor, in PayoutRequestInput) (*models.Payout, error)
	Approve(ctx context.Context, actor auth.Actor, id uuid.UUID, attachments []AttachmentInput, notes string) (*models.Payout, error)
	Reject(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*models.Payout, error)
	Complete(ctx context.Context, actor auth.Actor, id uuid.UUID, attachments []AttachmentInput) (*models.Payout, error)
	List(ctx context.Context, actor auth.Actor, filter PayoutFilter) ([]models.Payout, error)
}

type payoutService struct {
	db     *gorm.DB
	events events.Sink
	now    Clock
}

func NewPayoutService(db *gorm.DB, sink events.Sink, now Clock) PayoutService {
	if sink == nil {
		sink = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &payoutService{db: db, events: sink, now: now}
}

// checkPayoutAmount rejects withdrawals that would overdraw the balance.
func checkPayoutAmount(amount, available decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("amount must be greater than zero")
	}
	if amount.GreaterThan(available) {
		return apperror.BusinessRule("insufficient balance: requested %s, available %s", amount.StringFixed(0), available.StringFixed(0))
	}
	return nil
}

func (s *payoutService) Request(ctx context.Context, actor auth.Actor, in PayoutRequestInput) (*models.Payout, error) {
	if !actor.Is(auth.RoleAdminKos) {
		return nil, apperror.Forbidden("only property owners can request payouts")
	}
	if !in.Amount.IsPositive() {
		return nil, apperror.Validation("amount must be greater than zero")
	}

	var payout models.Payout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes balance checks per owner; released at commit or rollback.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", actor.UserID.String()).Error; err != nil {
			return dbError(err, "payout")
		}

		var account models.BankAccount
		if err := tx.First(&account, "id = ?", in.BankAccountID).Error; err != nil {
			return dbError(err, "bank account")
		}
		if account.OwnerID != actor.UserID {
			return apperror.Forbidden("bank account does not belong to you")
		}
		if account.Status != models.BankAccountApproved {
			return apperror.BusinessRule("bank account is not approved")
		}

		balance, err := computeBalance(tx, actor.UserID)
		if err != nil {
			return err
		}
		if err := checkPayoutAmount(in.Amount, balance.Available); err != nil {
			return err
		}

		payout = models.Payout{
			AdminKosID:    actor.UserID,
			BankAccountID: account.ID,
			Amount:        in.Amount,
			Source:        "RENTAL_INCOME",
			BalanceBefore: balance.Available,
			BalanceAfter:  balance.Available.Sub(in.Amount),
			Status:        models.PayoutPending,
		}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			payout.Notes = &notes
		}
		if err := tx.Omit("Attachments", "BankAccount").Create(&payout).Error; err != nil {
			return dbError(err, "payout")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Payout %s requested by %s for %s", payout.ID, payout.AdminKosID, payout.Amount)
	s.events.PayoutChanged(events.PayoutEvent{Payout: payout})
	return &payout, nil
}

func (s *payoutService) process(ctx context.Context, actor auth.Actor, id uuid.UUID, next models.PayoutStatus, fn func(tx *gorm.DB, p *models.Payout) error) (*models.Payout, error) {
	if !actor.Is(auth.RoleSuperAdmin) {
		return nil, apperror.Forbidden("only administrators can process payouts")
	}

	var (
		payout   models.Payout
		previous models.PayoutStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&payout, "id = ?", id).Error; err != nil {
			return dbError(err, "payout")
		}
		previous = payout.Status
		if !payout.Status.CanTransitionTo(next) {
			return apperror.BusinessRule("cannot move payout from %s to %s", payout.Status, next)
		}
		now := s.now()
		processedBy := actor.UserID
		payout.Status = next
		payout.ProcessedBy = &processedBy
		payout.ProcessedAt = &now
		if fn != nil {
			if err := fn(tx, &payout); err != nil {
				return err
			}
		}
		if err := tx.Omit("Attachments", "BankAccount").Save(&payout).Error; err != nil {
			return dbError(err, "payout")
		}
		return tx.Where("payout_id = ?", payout.ID).Order("created_at").Find(&payout.Attachments).Error
	})
	if err != nil {
		return nil, dbError(err, "payout")
	}

	log.Printf("✅ Payout %s moved %s -> %s by %s", payout.ID, previous, payout.Status, actor.UserID)
	s.events.PayoutChanged(events.PayoutEvent{Payout: payout, Previous: previous})
	return &payout, nil
}

func addAttachments(tx *gorm.DB, payoutID, uploader uuid.UUID, attachments []AttachmentInput) error {
	for _, a := range attachments {
		if strings.TrimSpace(a.FileURL) == "" {
			return apperror.Validation("attachment file_url is required")
		}
		name := a.FileName
		if name == "" {
			name = a.FileURL[strings.LastIndex(a.FileURL, "/")+1:]
		}
		row := models.PayoutAttachment{PayoutID: payoutID, FileURL: a.FileURL, FileName: name, UploadedBy: uploader}
		if err := tx.Create(&row).Error; err != nil {
			return dbError(err, "payout attachment")
		}
	}
	return nil
}

// Approve turns the hold into a settled withdrawal. The balance formula
// already deducts both, so no balance changes here.
func (s *payoutService) Approve(ctx context.Context, actor auth.Actor, id uuid.UUID, attachments []AttachmentInput, notes string) (*models.Payout, error) {
	return s.process(ctx, actor, id, models.PayoutApproved, func(tx *gorm.DB, p *models.Payout) error {
		if notes = strings.TrimSpace(notes); notes != "" {
			p.Notes = &notes
		}
		return addAttachments(tx, p.ID, actor.UserID, attachments)
	})
}

func (s *payoutService) Reject(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*models.Payout, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("rejection reason is required")
	}
	return s.process(ctx, actor, id, models.PayoutRejected, func(tx *gorm.DB, p *models.Payout) error {
		p.RejectionReason = &reason
		return nil
	})
}

func (s *payoutService) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID, attachments []AttachmentInput) (*models.Payout, error) {
	if len(attachments) == 0 {
		return nil, apperror.Validation("proof of transfer is required to complete a payout")
	}
	return s.process(ctx, actor, id, models.PayoutCompleted, func(tx *gorm.DB, p *models.Payout) error {
		return addAttachments(tx, p.ID, actor.UserID, attachments)
	})
}

func (s *payoutService) List(ctx context.Context, actor auth.Actor, filter PayoutFilter) ([]models.Payout, error) {
	q := s.db.WithContext(ctx).Preload("Attachments").Order("created_at DESC")
	switch {
	case actor.Is(auth.RoleAdminKos):
		q = q.Where("admin_kos_id = ?", actor.UserID)
	case actor.Is(auth.RoleSuperAdmin):
		if filter.OwnerID != nil {
			q = q.Where("admin_kos_id = ?", *filter.OwnerID)
		}
	default:
		return nil, apperror.Forbidden("you cannot view payouts")
	}
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, apperror.Validation("invalid payout status %q", filter.Status)
		}
		q = q.Where("status = ?", filter.Status)
	}

	var payouts []models.Payout
	if err := q.Find(&payouts).Error; err != nil {
		return nil, dbError(err, "payout")
	}
	return payouts, nil
}
