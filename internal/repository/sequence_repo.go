package repository

import (
	"context"

	"medsupply/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository hands out gap-tolerant, strictly increasing numbers per scope
type SequenceRepository interface {
	Next(ctx context.Context, scope string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next increments the counter for scope and returns the new value. The upsert
// takes a row lock that is held until the surrounding transaction ends, so
// concurrent callers are serialised on the same scope.
func (r *sequenceRepository) Next(ctx context.Context, scope string) (int64, error) {
	db := GetDB(ctx, r.db)

	seq := model.DocumentSequence{Scope: scope, CurrentValue: 1}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.Set{{
			Column: clause.Column{Name: "current_value"},
			Value:  gorm.Expr("document_sequences.current_value + 1"),
		}},
	}).Create(&seq).Error
	if err != nil {
		return 0, err
	}

	var current model.DocumentSequence
	if err := db.Where("scope = ?", scope).First(&current).Error; err != nil {
		return 0, err
	}
	return current.CurrentValue, nil
}
