package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/pkg/enums"
)

// Order is a ledger entry. A checkout writes one parent row plus one child per vendor group;
// children carry ParentID and own the line items.
type Order struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ParentID         *uuid.UUID           `gorm:"column:parent_id;type:uuid"`
	Status           enums.OrderStatus    `gorm:"column:status;not null"`
	CustomerID       string               `gorm:"column:customer_id;not null"`
	CustomerName     string               `gorm:"column:customer_name;not null"`
	CustomerEmail    string               `gorm:"column:customer_email;not null"`
	CustomerPhone    string               `gorm:"column:customer_phone;not null"`
	VendorID         *string              `gorm:"column:vendor_id"`
	VendorName       *string              `gorm:"column:vendor_name"`
	VendorRole       *enums.VendorRole    `gorm:"column:vendor_role"`
	PickupZone       *string              `gorm:"column:pickup_zone"`
	DropZone         string               `gorm:"column:drop_zone;not null"`
	DropAddress      string               `gorm:"column:drop_address;not null"`
	DeliveryMethod   enums.DeliveryMethod `gorm:"column:delivery_method;not null"`
	DeliveryJobID    *uuid.UUID           `gorm:"column:delivery_job_id;type:uuid"`
	PaymentMethod    enums.PaymentMethod  `gorm:"column:payment_method;not null"`
	PaymentReference *string              `gorm:"column:payment_reference"`
	Subtotal         decimal.Decimal      `gorm:"column:subtotal;type:numeric(20,6);not null"`
	AdminFee         decimal.Decimal      `gorm:"column:admin_fee;type:numeric(20,6);not null"`
	DeliveryFee      decimal.Decimal      `gorm:"column:delivery_fee;type:numeric(20,6);not null"`
	Total            decimal.Decimal      `gorm:"column:total;type:numeric(20,6);not null"`
	Currency         string               `gorm:"column:currency;not null"`
	Items            []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
