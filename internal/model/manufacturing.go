package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ManufacturingFormula is a recipe: the raw material quantities needed to
// produce StandardBatchSize units of the target product.
type ManufacturingFormula struct {
	Base
	ManufacturerID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"manufacturer_id"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Version           int             `gorm:"type:int;not null;default:1" json:"version"`
	StandardBatchSize decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"standard_batch_size"`
	Unit              string          `gorm:"type:varchar(20);not null" json:"unit"`
	TargetProductID   *uuid.UUID      `gorm:"type:uuid;index" json:"target_product_id"`
	TargetProduct     *Product        `gorm:"foreignKey:TargetProductID" json:"target_product,omitempty"`
	IsActive          bool            `gorm:"not null" json:"is_active"`
	Items             []FormulaItem   `gorm:"foreignKey:FormulaID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// FormulaItem is one ingredient line, quantified for the formula's standard batch size
type FormulaItem struct {
	Base
	FormulaID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"formula_id"`
	RawMaterialID uuid.UUID       `gorm:"type:uuid;not null;index" json:"raw_material_id"`
	RawMaterial   RawMaterial     `gorm:"foreignKey:RawMaterialID" json:"raw_material"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	SortOrder     int             `gorm:"type:int;not null;default:0" json:"sort_order"`
	Notes         string          `gorm:"type:text" json:"notes"`
}

// ProcessStage is a manufacturer's master definition of a production step.
// Batches copy the active stages when they start.
type ProcessStage struct {
	Base
	ManufacturerID uuid.UUID `gorm:"type:uuid;not null;index" json:"manufacturer_id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	SortOrder      int       `gorm:"type:int;not null;default:0" json:"sort_order"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BatchStatus constants
const (
	BatchStatusPlanned    = "PLANNED"
	BatchStatusInProgress = "IN_PROGRESS"
	BatchStatusQCPending  = "QC_PENDING"
	BatchStatusCompleted  = "COMPLETED"
	BatchStatusCancelled  = "CANCELLED"
	BatchStatusFailed     = "FAILED"
)

var batchTransitions = map[string][]string{
	BatchStatusPlanned:    {BatchStatusInProgress, BatchStatusCancelled, BatchStatusFailed},
	BatchStatusInProgress: {BatchStatusQCPending, BatchStatusCompleted, BatchStatusCancelled, BatchStatusFailed},
	BatchStatusQCPending:  {BatchStatusCompleted, BatchStatusCancelled, BatchStatusFailed},
}

// Batch is one production run
type Batch struct {
	Base
	ManufacturerID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"manufacturer_id"`
	BatchNumber        string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"batch_number"`
	FormulaID          *uuid.UUID       `gorm:"type:uuid;index" json:"formula_id"`
	TargetProductID    *uuid.UUID       `gorm:"type:uuid;index" json:"target_product_id"`
	PlannedQuantity    decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"planned_quantity"`
	ActualYield        *decimal.Decimal `gorm:"type:decimal(18,4)" json:"actual_yield"`
	YieldReported      bool             `gorm:"not null" json:"yield_reported"` // false when ActualYield defaulted to PlannedQuantity
	Unit               string           `gorm:"type:varchar(20);not null" json:"unit"`
	Status             string           `gorm:"type:varchar(20);not null;index" json:"status"`
	StartDate          *time.Time       `json:"start_date"`
	QCSubmittedAt      *time.Time       `json:"qc_submitted_at"`
	CompletionDate     *time.Time       `json:"completion_date"`
	TotalMaterialCost  decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"total_material_cost"`
	TotalOverheadCost  decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"total_overhead_cost"`
	CostPerUnit        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"cost_per_unit"`
	Notes              string           `gorm:"type:text" json:"notes"`
	CancellationReason string           `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CreatedBy          *uuid.UUID       `gorm:"type:uuid" json:"created_by"`
	Stages             []BatchStage     `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"stages"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// IsTerminal reports whether the batch can no longer change state
func (b *Batch) IsTerminal() bool {
	switch b.Status {
	case BatchStatusCompleted, BatchStatusCancelled, BatchStatusFailed:
		return true
	}
	return false
}

func (b *Batch) CanTransitionTo(status string) bool {
	for _, s := range batchTransitions[b.Status] {
		if s == status {
			return true
		}
	}
	return false
}

// BatchStageStatus constants
const (
	StageStatusPending    = "PENDING"
	StageStatusInProgress = "IN_PROGRESS"
	StageStatusCompleted  = "COMPLETED"
	StageStatusSkipped    = "SKIPPED"
)

// BatchStage is a per-batch copy of a ProcessStage. Later edits to the master
// stage list do not touch it.
type BatchStage struct {
	Base
	BatchID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"batch_id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	SortOrder   int        `gorm:"type:int;not null;default:0" json:"sort_order"`
	Status      string     `gorm:"type:varchar(20);not null" json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Notes       string     `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *BatchStage) IsDone() bool {
	return s.Status == StageStatusCompleted || s.Status == StageStatusSkipped
}
