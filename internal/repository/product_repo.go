package repository

import (
	"context"

	"medsupply/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock decimal.Decimal) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := forUpdate(GetDB(ctx, r.db)).
		Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDsForUpdate locks the given products in ascending id order. Missing ids
// are simply absent from the result.
func (r *productRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	ids = sortedUnique(ids)
	products := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		var p model.Product
		err := forUpdate(GetDB(ctx, r.db)).Where("id = ?", id).Limit(1).Find(&p).Error
		if err != nil {
			return nil, err
		}
		if p.ID != uuid.Nil {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).Update("stock_quantity", stock).Error
}
