package models

// All lists every model for auto-migration.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&ProductVariant{},
		&Order{},
		&OrderItem{},
		&OrderTimelineEntry{},
		&OrderCRMLog{},
		&PaymentSetting{},
		&SMSLog{},
		&SMSTemplate{},
	}
}
