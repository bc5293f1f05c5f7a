package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrganisationType enum constants
const (
	OrgTypeClinic       = "CLINIC"
	OrgTypeHospital     = "HOSPITAL"
	OrgTypeManufacturer = "MANUFACTURER"
	OrgTypePlatform     = "PLATFORM"
)

// ApprovalStatus enum constants
const (
	ApprovalPending   = "PENDING"
	ApprovalApproved  = "APPROVED"
	ApprovalRejected  = "REJECTED"
	ApprovalSuspended = "SUSPENDED"
)

// Organisation is a clinic, hospital or manufacturer tenant. Only the fields the
// production and order engines read are modelled here.
type Organisation struct {
	Base
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Type           string          `gorm:"type:varchar(20);not null;index" json:"type"`
	ApprovalStatus string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"approval_status"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"commission_rate"` // percent of line subtotal
	ContactName    string          `gorm:"type:varchar(255)" json:"contact_name"`
	Phone          string          `gorm:"type:varchar(50)" json:"phone"`
	Email          string          `gorm:"type:varchar(255)" json:"email"`
	AddressLine1   string          `gorm:"type:varchar(255)" json:"address_line1"`
	AddressLine2   string          `gorm:"type:varchar(255)" json:"address_line2"`
	City           string          `gorm:"type:varchar(100)" json:"city"`
	State          string          `gorm:"type:varchar(100)" json:"state"`
	Pincode        string          `gorm:"type:varchar(20)" json:"pincode"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (o *Organisation) IsApproved() bool {
	return o.ApprovalStatus == ApprovalApproved
}

// CanPlaceOrders reports whether the organisation buys on the marketplace
func (o *Organisation) CanPlaceOrders() bool {
	return o.Type == OrgTypeClinic || o.Type == OrgTypeHospital
}
