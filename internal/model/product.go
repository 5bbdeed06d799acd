package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the catalog record whose quantity the ledger reconciles.
// SKU is immutable once created. Quantity is only written through the
// stock reconciliation path and never goes negative.
type Product struct {
	BaseModel
	SKU      string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name     string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Price    decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"price"`
	Quantity int             `gorm:"not null;default:0" json:"quantity"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// User tracking
	CreatedByUserID *string `gorm:"type:varchar(255)" json:"created_by_user_id,omitempty"`
	UpdatedByUserID *string `gorm:"type:varchar(255)" json:"updated_by_user_id,omitempty"`

	Transactions []Transaction `json:"transactions,omitempty"`
}

// Snapshot returns the loggable field set used in audit details.
func (p *Product) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"sku":      p.SKU,
		"name":     p.Name,
		"price":    p.Price,
		"quantity": p.Quantity,
	}
}
