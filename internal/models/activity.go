package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity actions
const (
	ActivityVirtualFitting = "virtual_fitting"
	ActivityCreditPurchase = "credit_purchase"
)

// Activity statuses
const (
	ActivityStatusSuccess = "success"
	ActivityStatusError   = "error"
)

// ActivityLog is an append-only audit record for fitting attempts and credit
// purchases. Rows are never updated, only pruned by the retention job.
type ActivityLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Action       string     `gorm:"type:text;not null" json:"action"`
	Status       string     `gorm:"type:text;not null" json:"status"`
	ProductID    *uuid.UUID `gorm:"type:uuid" json:"product_id,omitempty"`
	ProcessingMs *int64     `json:"processing_ms,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	IPAddress    string     `gorm:"type:text" json:"ip_address"`
	UserAgent    string     `gorm:"type:text" json:"user_agent"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
