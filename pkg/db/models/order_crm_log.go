package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/cartline/pkg/enums"
)

// OrderCRMLog records a support agent follow-up against an order.
type OrderCRMLog struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.CRMStatus `gorm:"column:status;not null"`
	AgentID   *uuid.UUID      `gorm:"column:agent_id;type:uuid"`
	Note      *string         `gorm:"column:note"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
