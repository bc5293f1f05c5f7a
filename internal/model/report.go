package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockDiscrepancy is a raw material whose stored stock disagrees with the sum
// of its ledger entries
type StockDiscrepancy struct {
	RawMaterialID uuid.UUID       `json:"raw_material_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	LedgerStock   decimal.Decimal `json:"ledger_stock"`
	Difference    decimal.Decimal `json:"difference"`
}

// BatchStatusCount aggregates a manufacturer's batches in one status
type BatchStatusCount struct {
	Status       string          `json:"status"`
	Batches      int64           `json:"batches"`
	PlannedTotal decimal.Decimal `json:"planned_total"`
	YieldTotal   decimal.Decimal `json:"yield_total"`
	MaterialCost decimal.Decimal `json:"material_cost"`
}

// ProductSales is one product's revenue and units on non-cancelled order lines
type ProductSales struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	Commission  decimal.Decimal `json:"commission"`
}

// ProductionSummary is a manufacturer's activity over a date range
type ProductionSummary struct {
	ManufacturerID uuid.UUID          `json:"manufacturer_id"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	Batches        []BatchStatusCount `json:"batches"`
	TopRevenue     decimal.Decimal    `json:"top_revenue"`
	TopCommission  decimal.Decimal    `json:"top_commission"`
	TopProducts    []ProductSales     `json:"top_products"`
	LowStockCount  int                `json:"low_stock_count"`
}
