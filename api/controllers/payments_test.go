package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
)

type fakeSettlementService struct {
	success func(ctx context.Context, orderCode, tranID string) (*models.Order, error)
	failure func(ctx context.Context, orderCode string) (*models.Order, error)
	ipn     func(ctx context.Context, valID string) error
	bkash   func(ctx context.Context, paymentID, status string) (*models.Order, error)
}

func (f *fakeSettlementService) HandleSuccess(ctx context.Context, orderCode, tranID string) (*models.Order, error) {
	return f.success(ctx, orderCode, tranID)
}

func (f *fakeSettlementService) HandleFailure(ctx context.Context, orderCode string) (*models.Order, error) {
	return f.failure(ctx, orderCode)
}

func (f *fakeSettlementService) HandleIPN(ctx context.Context, valID string) error {
	return f.ipn(ctx, valID)
}

func (f *fakeSettlementService) HandleBkashCallback(ctx context.Context, paymentID, status string) (*models.Order, error) {
	return f.bkash(ctx, paymentID, status)
}

const storefront = "https://shop.example"

func newPaymentsRouter(svc *fakeSettlementService) http.Handler {
	r := chi.NewRouter()
	logg := testLogger()
	r.Post("/payments/ssl/success/{orderCode}", PaymentSuccess(svc, storefront, logg))
	r.Post("/payments/ssl/ipn", PaymentIPN(svc, logg))
	r.Post("/payments/fail/{orderCode}", PaymentFail(svc, storefront, logg))
	r.Get("/payments/bkash/callback", BkashCallback(svc, storefront, logg))
	r.Get("/payments/nagad/callback/{orderCode}", NagadCallback(svc, storefront, logg))
	return r
}

func TestPaymentSuccessRedirects(t *testing.T) {
	t.Parallel()

	var gotCode, gotTranID string
	svc := &fakeSettlementService{
		success: func(_ context.Context, orderCode, tranID string) (*models.Order, error) {
			gotCode, gotTranID = orderCode, tranID
			return &models.Order{Code: orderCode}, nil
		},
	}

	form := url.Values{"bank_tran_id": {"BANK1"}}
	req := httptest.NewRequest(http.MethodPost, "/payments/ssl/success/ORD-AB23CD", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newPaymentsRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "ORD-AB23CD", gotCode)
	require.Equal(t, "BANK1", gotTranID)
	location := rec.Header().Get("Location")
	require.Contains(t, location, storefront)
	require.Contains(t, location, "payment=success")
	require.Contains(t, location, "order=ORD-AB23CD")
}

func TestPaymentSuccessRedirectsFailedOnError(t *testing.T) {
	t.Parallel()

	svc := &fakeSettlementService{
		success: func(_ context.Context, _, _ string) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/ssl/success/ORD-MISSING", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newPaymentsRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "payment=failed")
}

func TestPaymentFailCancelsAndRedirects(t *testing.T) {
	t.Parallel()

	var gotCode string
	svc := &fakeSettlementService{
		failure: func(_ context.Context, orderCode string) (*models.Order, error) {
			gotCode = orderCode
			return &models.Order{Code: orderCode}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/fail/ORD-AB23CD", nil)
	rec := httptest.NewRecorder()
	newPaymentsRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "ORD-AB23CD", gotCode)
	require.Contains(t, rec.Header().Get("Location"), "payment=failed")
}

func TestPaymentIPN(t *testing.T) {
	t.Parallel()

	var gotValID string
	svc := &fakeSettlementService{
		ipn: func(_ context.Context, valID string) error {
			gotValID = valID
			return nil
		},
	}
	router := newPaymentsRouter(svc)

	form := url.Values{"val_id": {"val-1"}}
	req := httptest.NewRequest(http.MethodPost, "/payments/ssl/ipn", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "processed")
	require.Equal(t, "val-1", gotValID)

	// Missing val_id is acknowledged but never reaches the service.
	req = httptest.NewRequest(http.MethodPost, "/payments/ssl/ipn", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ignored")
}

func TestPaymentIPNAcknowledgesUnknownOrder(t *testing.T) {
	t.Parallel()

	svc := &fakeSettlementService{
		ipn: func(_ context.Context, _ string) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}

	form := url.Values{"val_id": {"val-unknown"}}
	req := httptest.NewRequest(http.MethodPost, "/payments/ssl/ipn", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newPaymentsRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ignored")
}

func TestBkashCallback(t *testing.T) {
	t.Parallel()

	paidAt := time.Now()
	svc := &fakeSettlementService{
		bkash: func(_ context.Context, paymentID, status string) (*models.Order, error) {
			require.Equal(t, "pay-1", paymentID)
			require.Equal(t, "success", status)
			return &models.Order{
				Code:          "ORD-AB23CD",
				PaymentStatus: enums.PaymentStatusPaid,
				PaidAt:        &paidAt,
			}, nil
		},
	}
	router := newPaymentsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/payments/bkash/callback?paymentID=pay-1&status=success", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "payment=success")

	// Missing paymentID still lands the buyer back on the storefront.
	req = httptest.NewRequest(http.MethodGet, "/payments/bkash/callback", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "payment=failed")
}

func TestNagadCallback(t *testing.T) {
	t.Parallel()

	var gotCode, gotRefID string
	svc := &fakeSettlementService{
		success: func(_ context.Context, orderCode, tranID string) (*models.Order, error) {
			gotCode, gotRefID = orderCode, tranID
			return &models.Order{Code: orderCode}, nil
		},
		failure: func(_ context.Context, orderCode string) (*models.Order, error) {
			gotCode = orderCode
			return &models.Order{Code: orderCode}, nil
		},
	}
	router := newPaymentsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/payments/nagad/callback/ORD-AB23CD?status=Success&payment_ref_id=ref-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "ORD-AB23CD", gotCode)
	require.Equal(t, "ref-1", gotRefID)
	require.Contains(t, rec.Header().Get("Location"), "payment=success")

	// Aborted payments cancel the order and bounce back as failed.
	req = httptest.NewRequest(http.MethodGet, "/payments/nagad/callback/ORD-AB23CD?status=Aborted", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "payment=failed")
}

func TestBkashCallbackUnknownPaymentID(t *testing.T) {
	t.Parallel()

	svc := &fakeSettlementService{
		bkash: func(_ context.Context, _, _ string) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/payments/bkash/callback?paymentID=missing&status=success", nil)
	rec := httptest.NewRecorder()
	newPaymentsRouter(svc).ServeHTTP(rec, req)

	// Unknown references are swallowed; the provider only sees a redirect.
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "payment=failed")
}
