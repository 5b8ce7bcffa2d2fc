package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a buyer identity keyed by phone number. Guests that pay
// through a gateway are provisioned with a random password and stay
// unverified until they complete an OTP challenge.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name         string     `gorm:"column:name;not null"`
	CountryCode  string     `gorm:"column:country_code;not null;uniqueIndex:idx_users_phone"`
	Number       string     `gorm:"column:number;not null;uniqueIndex:idx_users_phone"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Verified     bool       `gorm:"column:verified;not null;default:false"`
	IsAdmin      bool       `gorm:"column:is_admin;not null;default:false"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
