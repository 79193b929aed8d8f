package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Payout struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AdminKosID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"admin_kos_id"`
	BankAccountID uuid.UUID       `gorm:"type:uuid;not null" json:"bank_account_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Source        string          `gorm:"size:30;not null;default:'RENTAL_INCOME'" json:"source"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"balance_after"`
	Status        PayoutStatus    `gorm:"size:20;not null;default:'PENDING';index" json:"status"`

	Notes           *string    `gorm:"type:text" json:"notes"`
	RejectionReason *string    `gorm:"type:text" json:"rejection_reason"`
	ProcessedBy     *uuid.UUID `gorm:"type:uuid" json:"processed_by"`
	ProcessedAt     *time.Time `json:"processed_at"`

	Attachments []PayoutAttachment `gorm:"foreignkey:PayoutID" json:"attachments"`
	BankAccount BankAccount        `gorm:"foreignkey:BankAccountID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payout) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type PayoutAttachment struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PayoutID   uuid.UUID `gorm:"type:uuid;not null;index" json:"payout_id"`
	FileURL    string    `gorm:"size:500;not null" json:"file_url"`
	FileName   string    `gorm:"size:255;not null" json:"file_name"`
	UploadedBy uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type BankAccount struct {
	ID            uuid.UUID         `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OwnerID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"owner_id"`
	BankName      string            `gorm:"size:100;not null" json:"bank_name"`
	AccountNumber string            `gorm:"size:50;not null" json:"account_number"`
	AccountName   string            `gorm:"size:255;not null" json:"account_name"`
	Status        BankAccountStatus `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
