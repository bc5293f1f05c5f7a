package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the primary key shared by every table. IDs are generated in Go
// so the same models work on postgres and on the sqlite test databases.
type Base struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
}

// BeforeCreate assigns a fresh UUID when the caller has not set one
func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
