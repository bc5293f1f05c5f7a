package repository

import (
	"context"

	"medsupply/internal/model"
	"medsupply/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderFilter narrows List results. Zero values mean "no filter".
type OrderFilter struct {
	ClinicID       uuid.UUID
	ManufacturerID uuid.UUID
	Status         string
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	Update(ctx context.Context, order *model.Order) error
	UpdateItem(ctx context.Context, item *model.OrderItem) error
	List(ctx context.Context, filter OrderFilter, page, limit int) ([]model.Order, int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order header and its items
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	db := GetDB(ctx, r.db)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	if len(order.Items) == 0 {
		return nil
	}
	return db.Create(&order.Items).Error
}

func (r *orderRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items", itemsOrdered).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row, then loads its items
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	db := GetDB(ctx, r.db)
	if err := forUpdate(db).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	if err := itemsOrdered(GetDB(ctx, r.db)).Where("order_id = ?", id).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(order).Error
}

func (r *orderRepository) UpdateItem(ctx context.Context, item *model.OrderItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter, page, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Order{})
	if filter.ClinicID != uuid.Nil {
		db = db.Where("clinic_id = ?", filter.ClinicID)
	}
	if filter.ManufacturerID != uuid.Nil {
		db = db.Where("id IN (?)", GetDB(ctx, r.db).Model(&model.OrderItem{}).
			Select("order_id").Where("manufacturer_id = ?", filter.ManufacturerID))
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := pagination.Params{Page: page, Limit: limit}.Offset()
	if err := db.
		Preload("Items", itemsOrdered).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func itemsOrdered(db *gorm.DB) *gorm.DB {
	return db.Order("created_at asc, product_name asc")
}
