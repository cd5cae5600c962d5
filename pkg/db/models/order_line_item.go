package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/pkg/enums"
)

// OrderLineItem snapshots a cart line at submission time.
type OrderLineItem struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	ProductID          string           `gorm:"column:product_id;not null"`
	Name               string           `gorm:"column:name;not null"`
	UnitPrice          decimal.Decimal  `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Quantity           int              `gorm:"column:quantity;not null"`
	LineTotal          decimal.Decimal  `gorm:"column:line_total;type:numeric(20,6);not null"`
	VendorID           string           `gorm:"column:vendor_id;not null"`
	VendorName         string           `gorm:"column:vendor_name;not null"`
	VendorRole         enums.VendorRole `gorm:"column:vendor_role;not null"`
	VendorBaseLocation string           `gorm:"column:vendor_base_location;not null"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
}
