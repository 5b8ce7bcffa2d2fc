package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	checkoutsvc "github.com/example/cartline/internal/checkout"
	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeCheckoutService struct {
	initiate func(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error)
	verify   func(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error)
}

func (f *fakeCheckoutService) Initiate(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error) {
	return f.initiate(ctx, input)
}

func (f *fakeCheckoutService) VerifyCreate(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error) {
	return f.verify(ctx, input)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func checkoutBody(t *testing.T, overrides map[string]any) string {
	t.Helper()
	body := map[string]any{
		"customer_name":  "Rahim",
		"country_code":   "+880",
		"number":         "1712345678",
		"address":        "Dhaka",
		"items":          []map[string]any{{"product_id": uuid.NewString(), "qty": 2}},
		"payment_method": "cod",
	}
	for k, v := range overrides {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return string(raw)
}

func TestCheckoutInitiateRequiresOTP(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{
		initiate: func(_ context.Context, input checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error) {
			require.Equal(t, enums.PaymentMethodCOD, input.PaymentMethod)
			require.Equal(t, "+880", input.Phone.CountryCode)
			return &checkoutsvc.InitiateResult{RequiresOTP: true, MaskedPhone: "+880*******678"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/initiate", strings.NewReader(checkoutBody(t, nil)))
	rec := httptest.NewRecorder()
	CheckoutInitiate(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.RequiresOTP)
	require.Equal(t, "+880*******678", envelope.Data.MaskedPhone)
	require.Nil(t, envelope.Data.Order)
}

func TestCheckoutInitiateGatewayReturnsPaymentURL(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{
		initiate: func(_ context.Context, _ checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error) {
			return &checkoutsvc.InitiateResult{
				Order:      &models.Order{Code: "ORD-AB23CD", PaymentMethod: enums.PaymentMethodBkash},
				PaymentURL: "https://pay.example/redirect",
			}, nil
		},
	}

	body := checkoutBody(t, map[string]any{"payment_method": "bkash"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/initiate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CheckoutInitiate(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "https://pay.example/redirect", envelope.Data.PaymentURL)
	require.NotNil(t, envelope.Data.Order)
	require.Equal(t, "ORD-AB23CD", envelope.Data.Order.Code)
}

func TestCheckoutInitiateRejectsBadPayload(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{
		initiate: func(_ context.Context, _ checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	handler := CheckoutInitiate(svc, testLogger())

	cases := map[string]string{
		"missing name":   checkoutBody(t, map[string]any{"customer_name": ""}),
		"empty items":    checkoutBody(t, map[string]any{"items": []map[string]any{}}),
		"unknown field":  `{"customer_name":"Rahim","bogus":true}`,
		"unknown method": checkoutBody(t, map[string]any{"payment_method": "paypal"}),
		"malformed json": `{"customer_name":`,
		"zero item qty":  checkoutBody(t, map[string]any{"items": []map[string]any{{"product_id": uuid.NewString(), "qty": 0}}}),
		"no product id":  checkoutBody(t, map[string]any{"items": []map[string]any{{"qty": 1}}}),
		"bad otp length": checkoutBody(t, map[string]any{"otp_code": "12"}),
	}
	for name, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/initiate", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, name)
		require.Contains(t, rec.Body.String(), string(pkgerrors.CodeValidation), name)
	}
}

func TestCheckoutVerifyPlacesOrder(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{
		verify: func(_ context.Context, input checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error) {
			require.Equal(t, "482913", input.OTPCode)
			return &checkoutsvc.InitiateResult{Order: &models.Order{Code: "ORD-AB23CD"}}, nil
		},
	}

	body := checkoutBody(t, map[string]any{"otp_code": "482913"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CheckoutVerify(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestCheckoutVerifySurfacesOTPError(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{
		verify: func(_ context.Context, _ checkoutsvc.PlaceOrderInput) (*checkoutsvc.InitiateResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeOTPInvalid, "verification code invalid")
		},
	}

	body := checkoutBody(t, map[string]any{"otp_code": "000000"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CheckoutVerify(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), string(pkgerrors.CodeOTPInvalid))
}
