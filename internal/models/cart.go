package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart item types. The checkout flow only ever adds credit packages; product
// items land in the cart through other storefront flows and are treated as
// foreign content that must not be silently merged over.
const (
	CartItemCreditPackage = "credit_package"
	CartItemProduct       = "product"
)

// CartItem is a single line item in the session cart.
type CartItem struct {
	ItemType string  `json:"item_type"`
	RefID    string  `json:"ref_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
}

// CartItems is a custom type for the JSONB items column
type CartItems []CartItem

// Scan implements sql.Scanner interface
func (c *CartItems) Scan(value interface{}) error {
	if value == nil {
		*c = []CartItem{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, c)
}

// Value implements driver.Valuer interface
func (c CartItems) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal([]CartItem{})
	}
	return json.Marshal(c)
}

// Cart statuses
const (
	CartStatusActive     = "active"
	CartStatusCheckedOut = "checked_out"
	CartStatusExpired    = "expired"
)

// Cart is the session-scoped cart the reconciler brings into a known state
// before checkout. One active cart per user.
type Cart struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Items       CartItems `gorm:"type:jsonb;not null" json:"items"`
	TotalAmount float64   `gorm:"type:decimal(12,2);default:0" json:"total_amount"`
	Status      string    `gorm:"type:text;default:'active'" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (Cart) TableName() string {
	return "carts"
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = time.Now().Add(24 * time.Hour)
	}
	return nil
}

// CalculateTotal recalculates the total amount based on items
func (c *Cart) CalculateTotal() {
	total := 0.0
	for _, item := range c.Items {
		total += item.Subtotal
	}
	c.TotalAmount = total
}

// AddItem appends an item, merging quantity when the same reference is
// already present.
func (c *Cart) AddItem(item CartItem) {
	item.Subtotal = item.Price * float64(item.Quantity)

	for i, existing := range c.Items {
		if existing.ItemType == item.ItemType && existing.RefID == item.RefID {
			c.Items[i].Quantity += item.Quantity
			c.Items[i].Subtotal = c.Items[i].Price * float64(c.Items[i].Quantity)
			c.CalculateTotal()
			return
		}
	}

	c.Items = append(c.Items, item)
	c.CalculateTotal()
}

// ClearItems removes all items from the cart
func (c *Cart) ClearItems() {
	c.Items = []CartItem{}
	c.TotalAmount = 0
}

// HasCreditPackage reports whether any line item is a credit package.
func (c *Cart) HasCreditPackage() bool {
	for _, item := range c.Items {
		if item.ItemType == CartItemCreditPackage {
			return true
		}
	}
	return false
}

// HasForeignItems reports whether the cart holds anything other than credit
// packages.
func (c *Cart) HasForeignItems() bool {
	for _, item := range c.Items {
		if item.ItemType != CartItemCreditPackage {
			return true
		}
	}
	return false
}

// IsEmpty checks if the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// IsExpired checks if the cart has expired
func (c *Cart) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
