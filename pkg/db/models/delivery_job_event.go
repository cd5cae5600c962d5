package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chopmart/chopmart-backend/pkg/enums"
)

// DeliveryJobEvent is the append-only audit trail of delivery job transitions.
type DeliveryJobEvent struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	JobID      uuid.UUID                  `gorm:"column:job_id;type:uuid;not null"`
	Event      enums.DeliveryJobEventType `gorm:"column:event;not null"`
	FromStatus enums.DeliveryJobStatus    `gorm:"column:from_status;not null"`
	ToStatus   enums.DeliveryJobStatus    `gorm:"column:to_status;not null"`
	ActorID    string                     `gorm:"column:actor_id;not null"`
	ActorRole  enums.ActorRole            `gorm:"column:actor_role;not null"`
	Payload    map[string]any             `gorm:"column:payload;type:jsonb;serializer:json"`
	Version    int                        `gorm:"column:version;not null"`
	OccurredAt time.Time                  `gorm:"column:occurred_at;not null"`
}
