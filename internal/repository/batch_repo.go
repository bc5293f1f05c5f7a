package repository

import (
	"context"
	"time"

	"medsupply/internal/model"
	"medsupply/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	CreateStages(ctx context.Context, stages []model.BatchStage) error
	Update(ctx context.Context, batch *model.Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	ExistsByNumber(ctx context.Context, batchNumber string) (bool, error)
	List(ctx context.Context, manufacturerID uuid.UUID, status string, page, limit int) ([]model.Batch, int64, error)
	FindStage(ctx context.Context, batchID, stageID uuid.UUID) (*model.BatchStage, error)
	UpdateStage(ctx context.Context, stage *model.BatchStage) error
	CompleteOpenStages(ctx context.Context, batchID uuid.UUID, at time.Time) error
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.Batch) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(batch).Error
}

func (r *batchRepository) CreateStages(ctx context.Context, stages []model.BatchStage) error {
	if len(stages) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&stages).Error
}

// Update saves the batch row only; stages are written through UpdateStage
func (r *batchRepository) Update(ctx context.Context, batch *model.Batch) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(batch).Error
}

func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := GetDB(ctx, r.db).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order asc")
		}).
		First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := forUpdate(GetDB(ctx, r.db)).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) ExistsByNumber(ctx context.Context, batchNumber string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Batch{}).Where("batch_number = ?", batchNumber).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *batchRepository) List(ctx context.Context, manufacturerID uuid.UUID, status string, page, limit int) ([]model.Batch, int64, error) {
	var batches []model.Batch
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Batch{}).Where("manufacturer_id = ?", manufacturerID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Params{Page: page, Limit: limit}.Offset()
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&batches).Error; err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (r *batchRepository) FindStage(ctx context.Context, batchID, stageID uuid.UUID) (*model.BatchStage, error) {
	var stage model.BatchStage
	if err := GetDB(ctx, r.db).Where("id = ? AND batch_id = ?", stageID, batchID).First(&stage).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *batchRepository) UpdateStage(ctx context.Context, stage *model.BatchStage) error {
	return GetDB(ctx, r.db).Save(stage).Error
}

// CompleteOpenStages marks every PENDING or IN_PROGRESS stage of the batch as COMPLETED
func (r *batchRepository) CompleteOpenStages(ctx context.Context, batchID uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.BatchStage{}).
		Where("batch_id = ? AND status IN ?", batchID, []string{model.StageStatusPending, model.StageStatusInProgress}).
		Updates(map[string]any{"status": model.StageStatusCompleted, "completed_at": at}).Error
}
