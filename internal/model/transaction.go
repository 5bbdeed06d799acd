package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxBuy        TransactionType = "buy"
	TxSell       TransactionType = "sell"
	TxAdjustment TransactionType = "adjustment"
)

// Transaction is the immutable ledger record of a stock event. Rows are
// only ever inserted; there is no update or delete path.
//
// Delta is the signed quantity change the reconciliation applied to the
// product: +Quantity for buy, -Quantity for sell, and the caller-supplied
// signed value for adjustment. Quantity itself is always positive.
type Transaction struct {
	BaseModel
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id" validate:"uuid_required"`
	Product      Product         `json:"product" validate:"-"` // Relasi - skip validation
	Type         TransactionType `gorm:"type:varchar(12);not null" json:"type" validate:"required,oneof=buy sell adjustment"`
	Quantity     int             `gorm:"not null" json:"quantity" validate:"required,gt=0"`
	Delta        int             `gorm:"not null" json:"delta"`
	PricePerUnit decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price_per_unit"`
	TotalAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"` // Snapshot quantity * price
	Notes        string          `json:"notes"`

	// User tracking
	CreatedByUserID *string `gorm:"type:varchar(255)" json:"created_by_user_id,omitempty"`
}
