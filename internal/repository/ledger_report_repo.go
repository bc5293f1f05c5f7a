package repository

import (
	"context"
	"fmt"
	"time"

	"medsupply/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerReportRepository runs read-only aggregate queries over the inventory ledger
type LedgerReportRepository interface {
	StockDiscrepancies(ctx context.Context, manufacturerID uuid.UUID) ([]model.StockDiscrepancy, error)
	BatchSummary(ctx context.Context, manufacturerID uuid.UUID, from, to time.Time) ([]model.BatchStatusCount, error)
	TopProducts(ctx context.Context, manufacturerID uuid.UUID, from, to time.Time, limit int) ([]model.ProductSales, error)
}

type ledgerReportRepository struct {
	db *gorm.DB
}

func NewLedgerReportRepository(db *gorm.DB) LedgerReportRepository {
	return &ledgerReportRepository{db: db}
}

type materialLedgerRow struct {
	ID           uuid.UUID
	SKU          string
	Name         string
	Unit         string
	CurrentStock decimal.Decimal
	LedgerStock  decimal.NullDecimal
}

// StockDiscrepancies compares each material's stored stock with the sum of its
// ledger entries. The comparison runs in Go on decimals so the result does not
// depend on how the driver rounds aggregated numerics.
func (r *ledgerReportRepository) StockDiscrepancies(ctx context.Context, manufacturerID uuid.UUID) ([]model.StockDiscrepancy, error) {
	var rows []materialLedgerRow
	sums := r.db.WithContext(ctx).Model(&model.InventoryTransaction{}).
		Select("raw_material_id, SUM(quantity) AS total").
		Where("raw_material_id IS NOT NULL").
		Group("raw_material_id")

	if err := r.db.WithContext(ctx).Table("raw_materials").
		Select("raw_materials.id, raw_materials.sku, raw_materials.name, raw_materials.unit, raw_materials.current_stock, ledger.total AS ledger_stock").
		Joins("LEFT JOIN (?) AS ledger ON ledger.raw_material_id = raw_materials.id", sums).
		Where("raw_materials.manufacturer_id = ?", manufacturerID).
		Order("raw_materials.name asc").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query ledger totals: %w", err)
	}

	var out []model.StockDiscrepancy
	for _, row := range rows {
		ledger := orZero(row.LedgerStock)
		if ledger.Equal(row.CurrentStock) {
			continue
		}
		out = append(out, model.StockDiscrepancy{
			RawMaterialID: row.ID,
			SKU:           row.SKU,
			Name:          row.Name,
			Unit:          row.Unit,
			CurrentStock:  row.CurrentStock,
			LedgerStock:   ledger,
			Difference:    row.CurrentStock.Sub(ledger),
		})
	}
	return out, nil
}

type batchSummaryRow struct {
	Status       string
	Batches      int64
	PlannedTotal decimal.NullDecimal
	YieldTotal   decimal.NullDecimal
	MaterialCost decimal.NullDecimal
}

// BatchSummary groups batches created in [from, to] by status
func (r *ledgerReportRepository) BatchSummary(ctx context.Context, manufacturerID uuid.UUID, from, to time.Time) ([]model.BatchStatusCount, error) {
	var rows []batchSummaryRow
	if err := r.db.WithContext(ctx).Model(&model.Batch{}).
		Select("status, COUNT(*) AS batches, SUM(planned_quantity) AS planned_total, SUM(actual_yield) AS yield_total, SUM(total_material_cost) AS material_cost").
		Where("manufacturer_id = ? AND created_at >= ? AND created_at <= ?", manufacturerID, from, to).
		Group("status").
		Order("status asc").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to summarise batches: %w", err)
	}

	out := make([]model.BatchStatusCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.BatchStatusCount{
			Status:       row.Status,
			Batches:      row.Batches,
			PlannedTotal: orZero(row.PlannedTotal),
			YieldTotal:   orZero(row.YieldTotal),
			MaterialCost: orZero(row.MaterialCost),
		})
	}
	return out, nil
}

type productSalesRow struct {
	ProductID   uuid.UUID
	ProductName string
	ProductSKU  string
	Quantity    int64
	Revenue     decimal.NullDecimal
	Commission  decimal.NullDecimal
}

// TopProducts ranks the manufacturer's products by revenue on open or
// fulfilled order lines placed in [from, to]
func (r *ledgerReportRepository) TopProducts(ctx context.Context, manufacturerID uuid.UUID, from, to time.Time, limit int) ([]model.ProductSales, error) {
	var rows []productSalesRow
	if err := r.db.WithContext(ctx).Table("order_items").
		Select("order_items.product_id, order_items.product_name, order_items.product_sku, SUM(order_items.quantity) AS quantity, SUM(order_items.total_amount) AS revenue, SUM(order_items.commission_amount) AS commission").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.manufacturer_id = ? AND orders.created_at >= ? AND orders.created_at <= ?", manufacturerID, from, to).
		Where("order_items.status NOT IN ?", []string{model.ItemStatusCancelled, model.ItemStatusRefunded}).
		Group("order_items.product_id, order_items.product_name, order_items.product_sku").
		Order("revenue DESC, quantity DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	out := make([]model.ProductSales, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.ProductSales{
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			ProductSKU:  row.ProductSKU,
			Quantity:    row.Quantity,
			Revenue:     orZero(row.Revenue),
			Commission:  orZero(row.Commission),
		})
	}
	return out, nil
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}
