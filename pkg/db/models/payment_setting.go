package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/cartline/pkg/enums"
)

// PaymentSetting holds per-provider toggles and credentials managed by
// admins. Environment variables seed the defaults; rows here win.
type PaymentSetting struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Provider  enums.PaymentMethod `gorm:"column:provider;not null;uniqueIndex"`
	Enabled   bool                `gorm:"column:enabled;not null;default:false"`
	LiveMode  bool                `gorm:"column:live_mode;not null;default:false"`
	KeyID     *string             `gorm:"column:key_id"`
	KeySecret *string             `gorm:"column:key_secret"`
	Extra     *string             `gorm:"column:extra"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
