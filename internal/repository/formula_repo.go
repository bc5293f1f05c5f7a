package repository

import (
	"context"

	"medsupply/internal/model"
	"medsupply/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FormulaRepository interface {
	Create(ctx context.Context, formula *model.ManufacturingFormula) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.ManufacturingFormula, error)
	List(ctx context.Context, manufacturerID uuid.UUID, page, limit int) ([]model.ManufacturingFormula, int64, error)
}

type formulaRepository struct {
	db *gorm.DB
}

func NewFormulaRepository(db *gorm.DB) FormulaRepository {
	return &formulaRepository{db: db}
}

// Create inserts the formula and then its items. Loaded associations on the
// items are never written back.
func (r *formulaRepository) Create(ctx context.Context, formula *model.ManufacturingFormula) error {
	db := GetDB(ctx, r.db)
	if err := db.Omit(clause.Associations).Create(formula).Error; err != nil {
		return err
	}
	for i := range formula.Items {
		formula.Items[i].FormulaID = formula.ID
	}
	if len(formula.Items) == 0 {
		return nil
	}
	return db.Omit(clause.Associations).Create(&formula.Items).Error
}

func (r *formulaRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.ManufacturingFormula, error) {
	var formula model.ManufacturingFormula
	if err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order asc")
		}).
		Preload("Items.RawMaterial").
		First(&formula, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &formula, nil
}

func (r *formulaRepository) List(ctx context.Context, manufacturerID uuid.UUID, page, limit int) ([]model.ManufacturingFormula, int64, error) {
	var formulas []model.ManufacturingFormula
	var total int64

	db := GetDB(ctx, r.db).Model(&model.ManufacturingFormula{}).Where("manufacturer_id = ?", manufacturerID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Params{Page: page, Limit: limit}.Offset()
	if err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc")
	}).Order("name asc, version desc").Offset(offset).Limit(limit).Find(&formulas).Error; err != nil {
		return nil, 0, err
	}

	return formulas, total, nil
}
