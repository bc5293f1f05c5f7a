package database

import (
	"fmt"
	"time"

	"medsupply/internal/config"
	"medsupply/internal/logger"
	"medsupply/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const slowQueryThreshold = 200 * time.Millisecond

// Models lists every table owned by the service, in migration order
func Models() []any {
	return []any{
		&model.Organisation{},
		&model.Product{},
		&model.RawMaterial{},
		&model.ManufacturingFormula{},
		&model.FormulaItem{},
		&model.ProcessStage{},
		&model.Batch{},
		&model.BatchStage{},
		&model.InventoryTransaction{},
		&model.Order{},
		&model.OrderItem{},
		&model.DocumentSequence{},
		&model.AuditLog{},
	}
}

// NewConnection initializes a new connection pool using GORM
func NewConnection(cfg config.DatabaseConfig, log *zap.Logger, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.NewGormLogger(log, logger.GormLevel(logLevel), slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(Models()...); err != nil {
			log.Warn("failed to auto-migrate models", zap.Error(err))
		}
	}

	return db, nil
}
