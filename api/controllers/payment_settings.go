package controllers

import (
	"net/http"

	"github.com/example/cartline/api/responses"
	"github.com/example/cartline/api/validators"
	"github.com/example/cartline/internal/payments"
	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/google/uuid"
)

// AdminListPaymentSettings returns the provider toggles.
func AdminListPaymentSettings(svc payments.SettingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentSettingsResponse(settings))
	}
}

type updatePaymentSettingRequest struct {
	Provider  string  `json:"provider" validate:"required"`
	Enabled   bool    `json:"enabled"`
	LiveMode  bool    `json:"live_mode"`
	KeyID     *string `json:"key_id,omitempty"`
	KeySecret *string `json:"key_secret,omitempty"`
	Extra     *string `json:"extra,omitempty"`
}

// AdminUpdatePaymentSetting enables, disables or re-credentials a gateway.
func AdminUpdatePaymentSetting(svc payments.SettingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updatePaymentSettingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		provider, err := enums.ParsePaymentMethod(payload.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown provider"))
			return
		}

		setting := &models.PaymentSetting{
			ID:        uuid.New(),
			Provider:  provider,
			Enabled:   payload.Enabled,
			LiveMode:  payload.LiveMode,
			KeyID:     payload.KeyID,
			KeySecret: payload.KeySecret,
			Extra:     payload.Extra,
		}
		if err := svc.Update(r.Context(), setting); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentSettingResponse{
			Provider: setting.Provider.String(),
			Enabled:  setting.Enabled,
			LiveMode: setting.LiveMode,
		})
	}
}
