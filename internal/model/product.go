package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a finished good sold by a manufacturer. Batches credit its stock
// and orders debit it.
type Product struct {
	Base
	ManufacturerID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"manufacturer_id"`
	SKU              string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name             string          `gorm:"type:varchar(255);not null" json:"name"`
	Unit             string          `gorm:"type:varchar(20);not null;default:'pcs'" json:"unit"`
	Price            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	GSTRate          decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"gst_rate"` // percent
	StockQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"stock_quantity"`
	MinOrderQuantity int             `gorm:"type:int;not null;default:1" json:"min_order_quantity"`
	IsActive         bool            `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}
