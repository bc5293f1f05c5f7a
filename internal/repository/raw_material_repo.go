package repository

import (
	"context"
	"strings"

	"medsupply/internal/model"
	"medsupply/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RawMaterialRepository interface {
	Create(ctx context.Context, material *model.RawMaterial) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RawMaterial, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.RawMaterial, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RawMaterial, error)
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.RawMaterial, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock decimal.Decimal) error
	UpdateStockAndCost(ctx context.Context, id uuid.UUID, stock, unitCost decimal.Decimal) error
	List(ctx context.Context, manufacturerID uuid.UUID, page, limit int, search string) ([]model.RawMaterial, int64, error)
	ListLowStock(ctx context.Context, manufacturerID uuid.UUID) ([]model.RawMaterial, error)
}

type rawMaterialRepository struct {
	db *gorm.DB
}

func NewRawMaterialRepository(db *gorm.DB) RawMaterialRepository {
	return &rawMaterialRepository{db: db}
}

func (r *rawMaterialRepository) Create(ctx context.Context, material *model.RawMaterial) error {
	return GetDB(ctx, r.db).Create(material).Error
}

func (r *rawMaterialRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RawMaterial, error) {
	var m model.RawMaterial
	if err := GetDB(ctx, r.db).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *rawMaterialRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.RawMaterial, error) {
	var materials []model.RawMaterial
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *rawMaterialRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RawMaterial, error) {
	var m model.RawMaterial
	if err := forUpdate(GetDB(ctx, r.db)).
		Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByIDsForUpdate locks each material row in ascending id order and
// returns them in that order
func (r *rawMaterialRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.RawMaterial, error) {
	ids = sortedUnique(ids)
	materials := make([]model.RawMaterial, 0, len(ids))
	for _, id := range ids {
		var m model.RawMaterial
		if err := forUpdate(GetDB(ctx, r.db)).Where("id = ?", id).Limit(1).Find(&m).Error; err != nil {
			return nil, err
		}
		if m.ID != uuid.Nil {
			materials = append(materials, m)
		}
	}
	return materials, nil
}

func (r *rawMaterialRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.RawMaterial{}).Where("id = ?", id).Update("current_stock", stock).Error
}

func (r *rawMaterialRepository) UpdateStockAndCost(ctx context.Context, id uuid.UUID, stock, unitCost decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.RawMaterial{}).Where("id = ?", id).
		Updates(map[string]any{"current_stock": stock, "unit_cost": unitCost}).Error
}

func (r *rawMaterialRepository) List(ctx context.Context, manufacturerID uuid.UUID, page, limit int, search string) ([]model.RawMaterial, int64, error) {
	var materials []model.RawMaterial
	var total int64

	db := GetDB(ctx, r.db).Model(&model.RawMaterial{}).Where("manufacturer_id = ?", manufacturerID)
	if search != "" {
		db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Params{Page: page, Limit: limit}.Offset()
	if err := db.Order("name asc").Offset(offset).Limit(limit).Find(&materials).Error; err != nil {
		return nil, 0, err
	}

	return materials, total, nil
}

func (r *rawMaterialRepository) ListLowStock(ctx context.Context, manufacturerID uuid.UUID) ([]model.RawMaterial, error) {
	var materials []model.RawMaterial
	if err := GetDB(ctx, r.db).
		Where("manufacturer_id = ? AND is_active = ? AND current_stock <= reorder_point", manufacturerID, true).
		Order("name asc").
		Find(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}
