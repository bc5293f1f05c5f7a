package repository

import (
	"context"

	"medsupply/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrganisationRepository interface {
	Create(ctx context.Context, org *model.Organisation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Organisation, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Organisation, error)
}

type organisationRepository struct {
	db *gorm.DB
}

func NewOrganisationRepository(db *gorm.DB) OrganisationRepository {
	return &organisationRepository{db: db}
}

func (r *organisationRepository) Create(ctx context.Context, org *model.Organisation) error {
	return GetDB(ctx, r.db).Create(org).Error
}

func (r *organisationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Organisation, error) {
	var org model.Organisation
	if err := GetDB(ctx, r.db).First(&org, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organisationRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Organisation, error) {
	var orgs []model.Organisation
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&orgs).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*model.Organisation, len(orgs))
	for i := range orgs {
		out[orgs[i].ID] = &orgs[i]
	}
	return out, nil
}
