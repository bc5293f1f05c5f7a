package repository

import (
	"context"

	"medsupply/internal/model"
	"medsupply/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryTxRepository is append-only: ledger rows are never updated or deleted
type InventoryTxRepository interface {
	Create(ctx context.Context, tx *model.InventoryTransaction) error
	ListByMaterial(ctx context.Context, materialID uuid.UUID, page, limit int) ([]model.InventoryTransaction, int64, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID, txType string) ([]model.InventoryTransaction, error)
	SumByMaterial(ctx context.Context, materialID uuid.UUID) (decimal.Decimal, error)
	SumByProduct(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
}

type inventoryTxRepository struct {
	db *gorm.DB
}

func NewInventoryTxRepository(db *gorm.DB) InventoryTxRepository {
	return &inventoryTxRepository{db: db}
}

func (r *inventoryTxRepository) Create(ctx context.Context, tx *model.InventoryTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *inventoryTxRepository) ListByMaterial(ctx context.Context, materialID uuid.UUID, page, limit int) ([]model.InventoryTransaction, int64, error) {
	var txs []model.InventoryTransaction
	var total int64

	db := GetDB(ctx, r.db).Model(&model.InventoryTransaction{}).Where("raw_material_id = ?", materialID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Params{Page: page, Limit: limit}.Offset()
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *inventoryTxRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, txType string) ([]model.InventoryTransaction, error) {
	var txs []model.InventoryTransaction
	db := GetDB(ctx, r.db).Where("batch_id = ?", batchID)
	if txType != "" {
		db = db.Where("type = ?", txType)
	}
	if err := db.Order("created_at asc").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *inventoryTxRepository) SumByMaterial(ctx context.Context, materialID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(ctx, "raw_material_id = ?", materialID)
}

func (r *inventoryTxRepository) SumByProduct(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(ctx, "product_id = ?", productID)
}

func (r *inventoryTxRepository) sum(ctx context.Context, where string, id uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.NullDecimal
	}
	if err := GetDB(ctx, r.db).Model(&model.InventoryTransaction{}).
		Select("SUM(quantity) AS total").
		Where(where, id).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	if !result.Total.Valid {
		return decimal.Zero, nil
	}
	return result.Total.Decimal, nil
}
