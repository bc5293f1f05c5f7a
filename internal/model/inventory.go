package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Inventory transaction types
const (
	TxTypePurchase         = "PURCHASE"
	TxTypeProductionUsage  = "PRODUCTION_USAGE"
	TxTypeProductionOutput = "PRODUCTION_OUTPUT"
	TxTypeReturnIn         = "RETURN_IN"
	TxTypeReturnOut        = "RETURN_OUT"
	TxTypeAdjustment       = "ADJUSTMENT"
	TxTypeExpired          = "EXPIRED"
	TxTypeSale             = "SALE"
)

// InventoryTransaction is an immutable stock movement. Exactly one of
// RawMaterialID and ProductID is set. Quantity is signed: negative values leave
// stock.
type InventoryTransaction struct {
	Base
	ManufacturerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"manufacturer_id"`
	RawMaterialID  *uuid.UUID      `gorm:"type:uuid;index" json:"raw_material_id"`
	ProductID      *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	BatchID        *uuid.UUID      `gorm:"type:uuid;index" json:"batch_id"`
	OrderID        *uuid.UUID      `gorm:"type:uuid;index" json:"order_id"`
	Type           string          `gorm:"type:varchar(30);not null;index" json:"type"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_cost"`
	TotalCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_cost"`
	StockAfter     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"stock_after"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CreatedBy      *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
}
