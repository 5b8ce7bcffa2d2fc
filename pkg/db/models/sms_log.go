package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/cartline/pkg/enums"
)

// SMSLog is an audit row for every outbound text message attempt.
type SMSLog struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Recipient string          `gorm:"column:recipient;not null;index"`
	Body      string          `gorm:"column:body;not null"`
	Provider  string          `gorm:"column:provider;not null"`
	Status    enums.SMSStatus `gorm:"column:status;not null"`
	Error     *string         `gorm:"column:error"`
	OrderCode *string         `gorm:"column:order_code;index"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
