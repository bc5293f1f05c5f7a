package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawMaterial is an ingredient held by a manufacturer.
//
// CurrentStock is a running total of the material's InventoryTransactions and
// must only be changed by the inventory ledger. UnitCost is the moving weighted
// average of purchase costs.
type RawMaterial struct {
	Base
	ManufacturerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"manufacturer_id"`
	SKU            string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Unit           string          `gorm:"type:varchar(20);not null" json:"unit"`
	CurrentStock   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"current_stock"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_cost"`
	ReorderPoint   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"reorder_point"`
	IsActive       bool            `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (m *RawMaterial) IsLowStock() bool {
	return m.CurrentStock.LessThanOrEqual(m.ReorderPoint)
}
