package controllers

import (
	"time"

	"github.com/example/cartline/pkg/db/models"
	"github.com/google/uuid"
)

type orderItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	VariantID      uuid.UUID `json:"variant_id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	ImageURL       *string   `json:"image_url,omitempty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
	TotalCents     int64     `json:"total_cents"`
}

type orderResponse struct {
	Code                string              `json:"code"`
	Status              string              `json:"status"`
	PaymentMethod       string              `json:"payment_method"`
	PaymentStatus       string              `json:"payment_status"`
	SubtotalCents       int64               `json:"subtotal_cents"`
	DeliveryChargeCents int64               `json:"delivery_charge_cents"`
	DiscountCents       int64               `json:"discount_cents"`
	TotalCents          int64               `json:"total_cents"`
	CustomerName        string              `json:"customer_name"`
	CountryCode         string              `json:"country_code"`
	Number              string              `json:"number"`
	Address             string              `json:"address"`
	City                *string             `json:"city,omitempty"`
	Area                *string             `json:"area,omitempty"`
	Note                *string             `json:"note,omitempty"`
	PaidAt              *time.Time          `json:"paid_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	Items               []orderItemResponse `json:"items"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			SKU:            item.SKU,
			ImageURL:       item.ImageURL,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
		})
	}
	return orderResponse{
		Code:                order.Code,
		Status:              order.Status.String(),
		PaymentMethod:       order.PaymentMethod.String(),
		PaymentStatus:       order.PaymentStatus.String(),
		SubtotalCents:       order.SubtotalCents,
		DeliveryChargeCents: order.DeliveryChargeCents,
		DiscountCents:       order.DiscountCents,
		TotalCents:          order.TotalCents,
		CustomerName:        order.CustomerName,
		CountryCode:         order.CountryCode,
		Number:              order.Number,
		Address:             order.Address,
		City:                order.City,
		Area:                order.Area,
		Note:                order.Note,
		PaidAt:              order.PaidAt,
		CreatedAt:           order.CreatedAt,
		Items:               items,
	}
}

func newOrderListResponse(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	return out
}

type timelineEntryResponse struct {
	FromStatus string     `json:"from_status,omitempty"`
	ToStatus   string     `json:"to_status"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Note       *string    `json:"note,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newTimelineResponse(entries []models.OrderTimelineEntry) []timelineEntryResponse {
	out := make([]timelineEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, timelineEntryResponse{
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			ActorID:    entry.ActorID,
			Note:       entry.Note,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

type crmLogResponse struct {
	Status    string     `json:"status"`
	AgentID   *uuid.UUID `json:"agent_id,omitempty"`
	Note      *string    `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newCRMLogsResponse(logs []models.OrderCRMLog) []crmLogResponse {
	out := make([]crmLogResponse, 0, len(logs))
	for _, log := range logs {
		out = append(out, crmLogResponse{
			Status:    log.Status.String(),
			AgentID:   log.AgentID,
			Note:      log.Note,
			CreatedAt: log.CreatedAt,
		})
	}
	return out
}

type paymentSettingResponse struct {
	Provider string `json:"provider"`
	Enabled  bool   `json:"enabled"`
	LiveMode bool   `json:"live_mode"`
}

func newPaymentSettingsResponse(settings []models.PaymentSetting) []paymentSettingResponse {
	out := make([]paymentSettingResponse, 0, len(settings))
	for _, setting := range settings {
		out = append(out, paymentSettingResponse{
			Provider: setting.Provider.String(),
			Enabled:  setting.Enabled,
			LiveMode: setting.LiveMode,
		})
	}
	return out
}
