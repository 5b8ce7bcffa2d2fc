package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/example/cartline/api/responses"
	"github.com/example/cartline/api/validators"
	checkoutsvc "github.com/example/cartline/internal/checkout"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/example/cartline/pkg/types"
)

type checkoutItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Qty       int        `json:"qty" validate:"required,gt=0"`
}

type checkoutRequest struct {
	CustomerName  string                `json:"customer_name" validate:"required,min=2,max=120"`
	CountryCode   string                `json:"country_code" validate:"required,max=5"`
	Number        string                `json:"number" validate:"required,min=6,max=15"`
	Address       string                `json:"address" validate:"required,max=500"`
	City          *string               `json:"city,omitempty" validate:"omitempty,max=120"`
	Area          *string               `json:"area,omitempty" validate:"omitempty,max=120"`
	Note          *string               `json:"note,omitempty" validate:"omitempty,max=500"`
	Items         []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string                `json:"payment_method" validate:"required"`
	OTPCode       string                `json:"otp_code,omitempty" validate:"omitempty,len=6"`
}

func (req checkoutRequest) toInput() (checkoutsvc.PlaceOrderInput, error) {
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return checkoutsvc.PlaceOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment method")
	}
	items := make([]checkoutsvc.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, checkoutsvc.ItemInput{ProductID: item.ProductID, VariantID: item.VariantID, Qty: item.Qty})
	}
	return checkoutsvc.PlaceOrderInput{
		CustomerName:  req.CustomerName,
		Phone:         types.Phone{CountryCode: req.CountryCode, Number: req.Number},
		Address:       req.Address,
		City:          req.City,
		Area:          req.Area,
		Note:          req.Note,
		Items:         items,
		PaymentMethod: method,
		OTPCode:       req.OTPCode,
	}, nil
}

type checkoutResponse struct {
	RequiresOTP bool           `json:"requires_otp"`
	MaskedPhone string         `json:"masked_phone,omitempty"`
	PaymentURL  string         `json:"payment_url,omitempty"`
	Order       *orderResponse `json:"order,omitempty"`
}

func newCheckoutResponse(result *checkoutsvc.InitiateResult) checkoutResponse {
	resp := checkoutResponse{
		RequiresOTP: result.RequiresOTP,
		MaskedPhone: result.MaskedPhone,
		PaymentURL:  result.PaymentURL,
	}
	if result.Order != nil {
		order := newOrderResponse(result.Order)
		resp.Order = &order
	}
	return resp
}

// CheckoutInitiate starts a checkout. COD responds with an OTP challenge;
// gateway methods place the order and hand back the payment URL.
func CheckoutInitiate(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Order != nil {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, newCheckoutResponse(result))
	}
}

// CheckoutVerify finishes a COD checkout with the OTP from the buyer's phone.
func CheckoutVerify(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyCreate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}
