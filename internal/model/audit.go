package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateRawMaterial  = "CREATE_RAW_MATERIAL"
	ActionAddStock           = "ADD_STOCK"
	ActionAdjustStock        = "ADJUST_STOCK"
	ActionCreateFormula      = "CREATE_FORMULA"
	ActionCreateProcessStage = "CREATE_PROCESS_STAGE"

	// Batch lifecycle
	ActionStartBatch    = "START_BATCH"
	ActionSubmitBatchQC = "SUBMIT_BATCH_QC"
	ActionCompleteBatch = "COMPLETE_BATCH"
	ActionCancelBatch   = "CANCEL_BATCH"
	ActionFailBatch     = "FAIL_BATCH"
	ActionUpdateStage   = "UPDATE_BATCH_STAGE"

	// Orders
	ActionCreateOrder       = "CREATE_ORDER"
	ActionUpdateOrderStatus = "UPDATE_ORDER_STATUS"
	ActionUpdateOrderItem   = "UPDATE_ORDER_ITEM"
	ActionCancelOrder       = "CANCEL_ORDER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	Base
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for automated jobs
	OrganisationID *uuid.UUID `gorm:"type:uuid;index" json:"organisation_id"`
	Action         string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID       string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName     string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details        string     `gorm:"type:jsonb" json:"details"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}
