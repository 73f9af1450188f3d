package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditAccount tracks the per-user balance of fitting credits.
// Mutated only through single atomic UPDATE statements in the credit
// repository so that concurrent requests cannot drive the balance negative.
type CreditAccount struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	CreditsRemaining int       `gorm:"not null;default:0;check:credits_remaining >= 0" json:"credits_remaining"`
	TotalPurchased   int       `gorm:"not null;default:0" json:"total_purchased"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CreditAccount) TableName() string {
	return "credit_accounts"
}

func (a *CreditAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Credit transaction types
const (
	CreditTxPurchase   = "purchase"
	CreditTxUsage      = "usage"
	CreditTxGrant      = "grant"
	CreditTxCorrection = "correction"
)

// CreditTransaction is the append-only record behind every balance change.
// Reference carries the payment intent id for purchases; its unique index is
// what makes webhook-triggered crediting idempotent under duplicate delivery.
type CreditTransaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      string    `gorm:"type:text;not null" json:"type"`
	Amount    int       `gorm:"not null" json:"amount"`
	Reference *string   `gorm:"type:text;uniqueIndex" json:"reference,omitempty"`
	Note      string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

func (t *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// CreditPackage is a purchasable bundle of credits shown at checkout.
type CreditPackage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Credits   int       `gorm:"not null" json:"credits"`
	Price     float64   `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency  string    `gorm:"type:text;not null;default:'usd'" json:"currency"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CreditPackage) TableName() string {
	return "credit_packages"
}

func (p *CreditPackage) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
