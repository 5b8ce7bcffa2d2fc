package models

import (
	"time"

	"github.com/google/uuid"
)

// SMSTemplate is an admin-managed message body with {placeholder} tokens.
type SMSTemplate struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	Body      string    `gorm:"column:body;not null"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
