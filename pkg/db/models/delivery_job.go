package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/pkg/enums"
)

// JobVendor is a pickup leg carried on a delivery job.
type JobVendor struct {
	VendorID       string `json:"vendorId"`
	VendorName     string `json:"vendorName"`
	PickupLocation string `json:"pickupLocation"`
	PickupZone     string `json:"pickupZone"`
	ItemCount      int    `json:"itemCount"`
}

// DeliveryJob is the persisted state of a rider-brokered delivery.
// Version increments on every transition and guards conditional writes.
type DeliveryJob struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	Status          enums.DeliveryJobStatus `gorm:"column:status;not null;default:'pending_quote'"`
	Vendors         []JobVendor             `gorm:"column:vendors;type:jsonb;serializer:json;not null"`
	CustomerID      string                  `gorm:"column:customer_id;not null"`
	CustomerContact string                  `gorm:"column:customer_contact;not null"`
	DropAddress     string                  `gorm:"column:drop_address;not null"`
	DropZone        string                  `gorm:"column:drop_zone;not null"`
	QuotedAmount    *decimal.Decimal        `gorm:"column:quoted_amount;type:numeric(14,2)"`
	ETAMinutes      *int                    `gorm:"column:eta_minutes"`
	Notes           *string                 `gorm:"column:notes"`
	ExpiresAt       *time.Time              `gorm:"column:expires_at"`
	RiderID         *string                 `gorm:"column:rider_id"`
	PlatformCut     *decimal.Decimal        `gorm:"column:platform_cut;type:numeric(14,2)"`
	RiderPayout     *decimal.Decimal        `gorm:"column:rider_payout;type:numeric(14,2)"`
	CancelReason    *string                 `gorm:"column:cancel_reason"`
	AcceptedAt      *time.Time              `gorm:"column:accepted_at"`
	DeliveredAt     *time.Time              `gorm:"column:delivered_at"`
	ClosedAt        *time.Time              `gorm:"column:closed_at"`
	Version         int                     `gorm:"column:version;not null;default:1"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
