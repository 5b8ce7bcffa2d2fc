package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant is the sellable unit carrying price and stock counters.
// AvailableQty and ReservedQty only move through conditional updates so
// concurrent checkouts cannot oversell.
type ProductVariant struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SKU            string    `gorm:"column:sku;not null;uniqueIndex"`
	Name           string    `gorm:"column:name;not null"`
	ImageURL       *string   `gorm:"column:image_url"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	// DiscountPriceCents, when positive, is the price charged instead of
	// UnitPriceCents.
	DiscountPriceCents int64 `gorm:"column:discount_price_cents;not null;default:0"`
	AvailableQty   int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty    int       `gorm:"column:reserved_qty;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
