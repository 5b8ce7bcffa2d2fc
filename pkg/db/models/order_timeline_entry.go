package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderTimelineEntry is an append-only record of order status changes.
type OrderTimelineEntry struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus string     `gorm:"column:from_status;not null"`
	ToStatus   string     `gorm:"column:to_status;not null"`
	ActorID    *uuid.UUID `gorm:"column:actor_id;type:uuid"`
	Note       *string    `gorm:"column:note"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
