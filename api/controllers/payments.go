package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/cartline/api/responses"
	settlementsvc "github.com/example/cartline/internal/settlement"
	"github.com/example/cartline/pkg/logger"
)

// Callback handlers never error back to a provider: an unknown reference
// or malformed payload is logged and acknowledged, so provider-side
// retry storms cannot build up.

// PaymentSuccess receives the browser redirect from the SSLCommerz hosted
// page. The order is settled and the buyer is sent back to the storefront.
func PaymentSuccess(svc settlementsvc.Service, storefrontURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderCode := chi.URLParam(r, "orderCode")
		if err := r.ParseForm(); err != nil {
			logg.Warn(logg.WithOrderCode(r.Context(), orderCode), "ignoring malformed success callback")
			redirectToStorefront(w, r, storefrontURL, orderCode, "failed")
			return
		}
		tranID := r.FormValue("bank_tran_id")

		outcome := "success"
		if _, err := svc.HandleSuccess(r.Context(), orderCode, tranID); err != nil {
			logg.Error(logg.WithOrderCode(r.Context(), orderCode), "settling success callback", err)
			outcome = "failed"
		}
		redirectToStorefront(w, r, storefrontURL, orderCode, outcome)
	}
}

// PaymentFail receives the fail/cancel redirect. Payment is marked
// failed and the buyer lands back on the storefront; the order itself
// stays open for staff follow-up.
func PaymentFail(svc settlementsvc.Service, storefrontURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderCode := chi.URLParam(r, "orderCode")
		if _, err := svc.HandleFailure(r.Context(), orderCode); err != nil {
			logg.Error(logg.WithOrderCode(r.Context(), orderCode), "settling failure callback", err)
		}
		redirectToStorefront(w, r, storefrontURL, orderCode, "failed")
	}
}

// PaymentIPN receives SSLCommerz's server-to-server notification. The
// val_id is confirmed with the provider before anything is believed.
func PaymentIPN(svc settlementsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			logg.Warn(r.Context(), "ignoring malformed ipn payload")
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}
		valID := r.FormValue("val_id")
		if valID == "" {
			logg.Warn(r.Context(), "ignoring ipn without val_id")
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		if err := svc.HandleIPN(r.Context(), valID); err != nil {
			logg.Error(r.Context(), "settling ipn", err)
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}

// BkashCallback finalizes a bKash payment after the hosted flow returns.
func BkashCallback(svc settlementsvc.Service, storefrontURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID := r.URL.Query().Get("paymentID")
		status := r.URL.Query().Get("status")
		if paymentID == "" {
			logg.Warn(r.Context(), "ignoring bkash callback without paymentID")
			redirectToStorefront(w, r, storefrontURL, "", "failed")
			return
		}

		order, err := svc.HandleBkashCallback(r.Context(), paymentID, status)
		if err != nil {
			logg.Error(r.Context(), "settling bkash callback", err)
			redirectToStorefront(w, r, storefrontURL, "", "failed")
			return
		}

		outcome := "success"
		if !order.PaymentStatus.Terminal() || order.PaidAt == nil {
			outcome = "failed"
		}
		redirectToStorefront(w, r, storefrontURL, order.Code, outcome)
	}
}

// NagadCallback receives Nagad's single merchant callback. The status
// query parameter decides whether the payment settled or fell through.
func NagadCallback(svc settlementsvc.Service, storefrontURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderCode := chi.URLParam(r, "orderCode")
		status := r.URL.Query().Get("status")
		refID := r.URL.Query().Get("payment_ref_id")

		if status != "Success" {
			if _, err := svc.HandleFailure(r.Context(), orderCode); err != nil {
				logg.Error(logg.WithOrderCode(r.Context(), orderCode), "settling nagad failure callback", err)
			}
			redirectToStorefront(w, r, storefrontURL, orderCode, "failed")
			return
		}

		outcome := "success"
		if _, err := svc.HandleSuccess(r.Context(), orderCode, refID); err != nil {
			logg.Error(logg.WithOrderCode(r.Context(), orderCode), "settling nagad success callback", err)
			outcome = "failed"
		}
		redirectToStorefront(w, r, storefrontURL, orderCode, outcome)
	}
}

func redirectToStorefront(w http.ResponseWriter, r *http.Request, storefrontURL, orderCode, outcome string) {
	target := fmt.Sprintf("%s/checkout/result?payment=%s", storefrontURL, outcome)
	if orderCode != "" {
		target += "&order=" + orderCode
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
