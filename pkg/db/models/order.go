package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/cartline/pkg/enums"
)

// Order is the placed order header. Code is the short public identifier
// quoted to the buyer and embedded in gateway callbacks.
type Order struct {
	ID                  uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Code                string              `gorm:"column:code;not null;uniqueIndex"`
	UserID              uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status              enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	ProviderPaymentID   *string             `gorm:"column:provider_payment_id;index"`
	ProviderTranID      *string             `gorm:"column:provider_tran_id"`
	SubtotalCents       int64               `gorm:"column:subtotal_cents;not null"`
	DeliveryChargeCents int64               `gorm:"column:delivery_charge_cents;not null;default:0"`
	DiscountCents       int64               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents          int64               `gorm:"column:total_cents;not null"`
	CustomerName        string              `gorm:"column:customer_name;not null"`
	CountryCode         string              `gorm:"column:country_code;not null"`
	Number              string              `gorm:"column:number;not null;index"`
	Address             string              `gorm:"column:address;not null"`
	City                *string             `gorm:"column:city"`
	Area                *string             `gorm:"column:area"`
	Note                *string             `gorm:"column:note"`
	PaidAt              *time.Time          `gorm:"column:paid_at"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}
