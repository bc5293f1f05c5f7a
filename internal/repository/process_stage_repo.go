package repository

import (
	"context"

	"medsupply/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProcessStageRepository interface {
	Create(ctx context.Context, stage *model.ProcessStage) error
	ListByManufacturer(ctx context.Context, manufacturerID uuid.UUID, activeOnly bool) ([]model.ProcessStage, error)
}

type processStageRepository struct {
	db *gorm.DB
}

func NewProcessStageRepository(db *gorm.DB) ProcessStageRepository {
	return &processStageRepository{db: db}
}

func (r *processStageRepository) Create(ctx context.Context, stage *model.ProcessStage) error {
	return GetDB(ctx, r.db).Create(stage).Error
}

func (r *processStageRepository) ListByManufacturer(ctx context.Context, manufacturerID uuid.UUID, activeOnly bool) ([]model.ProcessStage, error) {
	var stages []model.ProcessStage
	db := GetDB(ctx, r.db).Where("manufacturer_id = ?", manufacturerID)
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	if err := db.Order("sort_order asc, name asc").Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}
