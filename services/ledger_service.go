package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Balance struct {
	OwnerID     uuid.UUID       `json:"owner_id"`
	TotalIncome decimal.Decimal `json:"total_income"`
	Withdrawn   decimal.Decimal `json:"withdrawn"`
	Held        decimal.Decimal `json:"held"`
	Available   decimal.Decimal `json:"available"`
}

type LedgerService interface {
	ComputeBalance(ctx context.Context, actor auth.Actor, ownerID uuid.UUID) (*Balance, error)
}

type ledgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) LedgerService {
	return &ledgerService{db: db}
}

// balanceQuery reads income, settled withdrawals and held withdrawals in one
// statement so all three sums come from the same snapshot. Payments owed back
// to the customer are not income.
const balanceQuery = `
SELECT
	COALESCE((
		SELECT SUM(p.amount)
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		JOIN properties pr ON pr.id = b.property_id
		WHERE pr.owner_id = @owner AND p.status = 'SUCCESS' AND NOT p.refund_required
	), 0) AS total_income,
	COALESCE((
		SELECT SUM(amount) FROM payouts
		WHERE admin_kos_id = @owner AND status IN ('APPROVED', 'COMPLETED')
	), 0) AS withdrawn,
	COALESCE((
		SELECT SUM(amount) FROM payouts
		WHERE admin_kos_id = @owner AND status = 'PENDING'
	), 0) AS held`

func computeBalance(tx *gorm.DB, ownerID uuid.UUID) (*Balance, error) {
	var row struct {
		TotalIncome decimal.Decimal
		Withdrawn   decimal.Decimal
		Held        decimal.Decimal
	}
	if err := tx.Raw(balanceQuery, map[string]any{"owner": ownerID}).Scan(&row).Error; err != nil {
		return nil, dbError(err, "balance")
	}
	return &Balance{
		OwnerID:     ownerID,
		TotalIncome: row.TotalIncome,
		Withdrawn:   row.Withdrawn,
		Held:        row.Held,
		Available:   row.TotalIncome.Sub(row.Withdrawn).Sub(row.Held),
	}, nil
}

func (s *ledgerService) ComputeBalance(ctx context.Context, actor auth.Actor, ownerID uuid.UUID) (*Balance, error) {
	switch {
	case actor.Is(auth.RoleAdminKos):
		if ownerID != uuid.Nil && ownerID != actor.UserID {
			return nil, apperror.Forbidden("you can only view your own balance")
		}
		ownerID = actor.UserID
	case actor.Privileged():
		if ownerID == uuid.Nil {
			return nil, apperror.Validation("owner_id is required")
		}
	default:
		return nil, apperror.Forbidden("you cannot view ledger balances")
	}
	return computeBalance(s.db.WithContext(ctx), ownerID)
}
