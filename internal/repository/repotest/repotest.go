// Package repotest provides database fixtures for repository and service tests.
package repotest

import (
	"testing"

	"medsupply/internal/database"
	"medsupply/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database. The pool is capped at one
// connection so every statement sees the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.Models()...))
	return db
}

// Organisation inserts an approved organisation of the given type
func Organisation(t *testing.T, db *gorm.DB, name, orgType string) *model.Organisation {
	t.Helper()
	org := &model.Organisation{
		Name:           name,
		Type:           orgType,
		ApprovalStatus: model.ApprovalApproved,
		ContactName:    name + " Desk",
		Phone:          "+91 98450 00000",
		AddressLine1:   "12 MG Road",
		City:           "Bengaluru",
		State:          "Karnataka",
		Pincode:        "560001",
	}
	require.NoError(t, db.Create(org).Error)
	return org
}

// RawMaterial inserts an active material without a ledger entry. Tests that
// check reconciliation should go through the inventory service instead.
func RawMaterial(t *testing.T, db *gorm.DB, manufacturerID uuid.UUID, sku, name, unit string, stock, unitCost string) *model.RawMaterial {
	t.Helper()
	m := &model.RawMaterial{
		ManufacturerID: manufacturerID,
		SKU:            sku,
		Name:           name,
		Unit:           unit,
		CurrentStock:   decimal.RequireFromString(stock),
		UnitCost:       decimal.RequireFromString(unitCost),
		ReorderPoint:   decimal.Zero,
		IsActive:       true,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

// Product inserts an active finished good
func Product(t *testing.T, db *gorm.DB, manufacturerID uuid.UUID, sku, name, price, gstRate, stock string) *model.Product {
	t.Helper()
	p := &model.Product{
		ManufacturerID:   manufacturerID,
		SKU:              sku,
		Name:             name,
		Unit:             "pcs",
		Price:            decimal.RequireFromString(price),
		GSTRate:          decimal.RequireFromString(gstRate),
		StockQuantity:    decimal.RequireFromString(stock),
		MinOrderQuantity: 1,
		IsActive:         true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
