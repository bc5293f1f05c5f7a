package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus constants
const (
	OrderStatusPending            = "PENDING"
	OrderStatusConfirmed          = "CONFIRMED"
	OrderStatusProcessing         = "PROCESSING"
	OrderStatusShipped            = "SHIPPED"
	OrderStatusDelivered          = "DELIVERED"
	OrderStatusPartiallyFulfilled = "PARTIALLY_FULFILLED"
	OrderStatusCancelled          = "CANCELLED"
	OrderStatusDisputed           = "DISPUTED"
	OrderStatusRefunded           = "REFUNDED"
)

// OrderItemStatus constants
const (
	ItemStatusPending   = "pending"
	ItemStatusConfirmed = "confirmed"
	ItemStatusShipped   = "shipped"
	ItemStatusDelivered = "delivered"
	ItemStatusCancelled = "cancelled"
	ItemStatusRefunded  = "refunded"
)

// OrderSource constants
const (
	OrderSourceWeb      = "WEB"
	OrderSourceMobile   = "MOBILE"
	OrderSourceWhatsApp = "WHATSAPP"
	OrderSourceAdmin    = "ADMIN"
)

// Order is a clinic's purchase. Monetary totals and the shipping address are
// captured when the order is placed.
type Order struct {
	Base
	OrderNumber        string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"order_number"`
	ClinicID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"clinic_id"`
	PlacedBy           *uuid.UUID      `gorm:"type:uuid" json:"placed_by"`
	Source             string          `gorm:"type:varchar(20);not null" json:"source"`
	Status             string          `gorm:"type:varchar(30);not null;index" json:"status"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	GSTAmount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"gst_amount"`
	ShippingCharges    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"shipping_charges"`
	PlatformFee        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"platform_fee"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	CommissionAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"commission_amount"`
	ShippingName       string          `gorm:"type:varchar(255)" json:"shipping_name"`
	ShippingPhone      string          `gorm:"type:varchar(50)" json:"shipping_phone"`
	ShippingAddress1   string          `gorm:"type:varchar(255)" json:"shipping_address1"`
	ShippingAddress2   string          `gorm:"type:varchar(255)" json:"shipping_address2"`
	ShippingCity       string          `gorm:"type:varchar(100)" json:"shipping_city"`
	ShippingState      string          `gorm:"type:varchar(100)" json:"shipping_state"`
	ShippingPincode    string          `gorm:"type:varchar(20)" json:"shipping_pincode"`
	Notes              string          `gorm:"type:text" json:"notes"`
	CancelledAt        *time.Time      `json:"cancelled_at"`
	CancelledBy        *uuid.UUID      `gorm:"type:uuid" json:"cancelled_by"`
	CancellationReason string          `gorm:"type:text" json:"cancellation_reason,omitempty"`
	Items              []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt          time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// OrderItem is one product line. Pricing fields are copies of the product and
// manufacturer terms at order time.
type OrderItem struct {
	Base
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ManufacturerID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"manufacturer_id"`
	ProductName       string          `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductSKU        string          `gorm:"type:varchar(100);not null" json:"product_sku"`
	Quantity          int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	GSTRate           decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"gst_rate"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	GSTAmount         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"gst_amount"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	CommissionRate    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"commission_rate"`
	CommissionAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"commission_amount"`
	ShippedQuantity   int             `gorm:"type:int;not null;default:0" json:"shipped_quantity"`
	DeliveredQuantity int             `gorm:"type:int;not null;default:0" json:"delivered_quantity"`
	Status            string          `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsClosed reports whether the item no longer takes part in fulfilment
func (i *OrderItem) IsClosed() bool {
	return i.Status == ItemStatusCancelled || i.Status == ItemStatusRefunded
}
