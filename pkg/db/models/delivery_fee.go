package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryFee is one admin-maintained price list entry for an origin/destination zone pair.
type DeliveryFee struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OriginZone      string          `gorm:"column:origin_zone;not null"`
	DestinationZone string          `gorm:"column:destination_zone;not null"`
	Fee             decimal.Decimal `gorm:"column:fee;type:numeric(14,2);not null"`
	UpdatedBy       *string         `gorm:"column:updated_by"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
