package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/cartline/pkg/config"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/types"
)

func bkashConfig(baseURL string) config.BkashConfig {
	return config.BkashConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		Username:  "sandbox",
		Password:  "sandbox",
		BaseURL:   baseURL,
		Timeout:   2 * time.Second,
	}
}

func TestBkashInitiateAndExecute(t *testing.T) {
	t.Parallel()

	var tokenGrants int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case bkashTokenPath:
			atomic.AddInt64(&tokenGrants, 1)
			if r.Header.Get("username") != "sandbox" {
				t.Fatalf("missing username header")
			}
			w.Write([]byte(`{"id_token":"tok-1","expires_in":3600}`))
		case bkashCreatePath:
			if r.Header.Get("Authorization") != "tok-1" || r.Header.Get("X-APP-Key") != "app-key" {
				t.Fatalf("missing auth headers")
			}
			var payload map[string]string
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode create payload: %v", err)
			}
			if payload["amount"] != "150.50" || payload["merchantInvoiceNumber"] != "ORD-AB23CD" {
				t.Fatalf("unexpected create payload %+v", payload)
			}
			w.Write([]byte(`{"paymentID":"pay-9","bkashURL":"https://bkash.example/pay-9","statusCode":"0000"}`))
		case bkashExecutePath:
			var payload map[string]string
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode execute payload: %v", err)
			}
			if payload["paymentID"] != "pay-9" {
				t.Fatalf("unexpected paymentID %q", payload["paymentID"])
			}
			w.Write([]byte(`{"statusCode":"0000","trxID":"TRX77","transactionStatus":"Completed"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	gw, err := NewBkashGateway(bkashConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("build gateway: %v", err)
	}

	session, err := gw.Initiate(context.Background(), InitiateRequest{
		OrderCode:   "ORD-AB23CD",
		AmountCents: 15050,
		Currency:    "BDT",
		Phone:       types.Phone{CountryCode: "+880", Number: "1712345678"},
		SuccessURL:  "https://api.example/payments/bkash/callback",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if session.PaymentID != "pay-9" || session.RedirectURL != "https://bkash.example/pay-9" {
		t.Fatalf("unexpected session %+v", session)
	}

	result, err := gw.Execute(context.Background(), "pay-9")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Settled || result.TransactionID != "TRX77" {
		t.Fatalf("unexpected result %+v", result)
	}

	// Token is cached between the two calls.
	if got := atomic.LoadInt64(&tokenGrants); got != 1 {
		t.Fatalf("expected 1 token grant, got %d", got)
	}
}

func TestBkashExecuteIncomplete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case bkashTokenPath:
			w.Write([]byte(`{"id_token":"tok-1","expires_in":3600}`))
		case bkashExecutePath:
			w.Write([]byte(`{"statusCode":"2023","statusMessage":"Insufficient balance","transactionStatus":"Failed"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	gw, err := NewBkashGateway(bkashConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("build gateway: %v", err)
	}

	result, err := gw.Execute(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Settled {
		t.Fatal("expected unsettled result")
	}
	if result.RawStatus != "2023" {
		t.Fatalf("unexpected raw status %q", result.RawStatus)
	}
}

func TestBkashTokenGrantRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != bkashTokenPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id_token":"tok-2","expires_in":3600}`))
	}))
	defer srv.Close()

	gw, err := NewBkashGateway(bkashConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("build gateway: %v", err)
	}

	token, err := gw.grantToken(context.Background())
	if err != nil {
		t.Fatalf("grant token: %v", err)
	}
	if token != "tok-2" {
		t.Fatalf("unexpected token %q", token)
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestBkashExecuteRequiresPaymentID(t *testing.T) {
	t.Parallel()

	gw, err := NewBkashGateway(bkashConfig("http://localhost:0"), http.DefaultClient)
	if err != nil {
		t.Fatalf("build gateway: %v", err)
	}
	if _, err := gw.Execute(context.Background(), ""); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
