package controllers

import (
	"net/http"

	"github.com/example/cartline/api/responses"
	"github.com/example/cartline/api/validators"
	"github.com/example/cartline/internal/identity"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/example/cartline/pkg/types"
)

type otpResendRequest struct {
	CountryCode string `json:"country_code" validate:"required,max=5"`
	Number      string `json:"number" validate:"required,min=6,max=15"`
}

// OTPResend issues a fresh verification code, replacing any prior one
// for the same number.
func OTPResend(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		var payload otpResendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		phone := types.Phone{CountryCode: payload.CountryCode, Number: payload.Number}
		if err := svc.RequestOTP(r.Context(), phone); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "sent"})
	}
}
