package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment status constants
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// Order records a credit-package purchase. Credits attached to the order are
// granted exactly once, keyed on the payment reference.
type Order struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	OrderNumber string         `gorm:"type:text;unique;not null" json:"order_number"`
	Items       datatypes.JSON `gorm:"type:jsonb;not null" json:"items"`
	Credits     int            `gorm:"not null;default:0" json:"credits"`
	TotalAmount float64        `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency    string         `gorm:"type:text;not null;default:'usd'" json:"currency"`

	PaymentStatus    string     `gorm:"type:text;default:'pending'" json:"payment_status"`
	PaymentMethod    string     `gorm:"type:text" json:"payment_method"`
	PaymentReference string     `gorm:"type:text;index" json:"payment_reference"`
	PaidAt           *time.Time `json:"paid_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
