package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/cartline/pkg/config"
)

func TestBulkSMSBDSender(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"api_key":  r.PostFormValue("api_key"),
			"senderid": r.PostFormValue("senderid"),
			"number":   r.PostFormValue("number"),
			"message":  r.PostFormValue("message"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response_code":202,"success_message":"SMS Submitted Successfully"}`))
	}))
	defer server.Close()

	sender, err := NewSender(config.SMSConfig{
		Provider: "bulksmsbd",
		APIKey:   "key-1",
		SenderID: "CARTLINE",
		BaseURL:  server.URL,
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("build sender: %v", err)
	}

	if err := sender.Send(context.Background(), "+8801712345678", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotForm["api_key"] != "key-1" || gotForm["senderid"] != "CARTLINE" {
		t.Fatalf("credentials not forwarded: %+v", gotForm)
	}
	if gotForm["number"] != "+8801712345678" || gotForm["message"] != "hello" {
		t.Fatalf("message not forwarded: %+v", gotForm)
	}
}

func TestBulkSMSBDSenderRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response_code":1002,"error_message":"Invalid Sender"}`))
	}))
	defer server.Close()

	sender, err := NewSender(config.SMSConfig{
		Provider: "bulksmsbd",
		BaseURL:  server.URL,
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("build sender: %v", err)
	}
	if err := sender.Send(context.Background(), "+8801712345678", "hello"); err == nil {
		t.Fatal("expected rejection error")
	}
}

func TestGreenwebSender(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostFormValue("token") != "tok-1" {
			t.Errorf("token not forwarded: %s", r.PostFormValue("token"))
		}
		w.Write([]byte("Ok: SMS sent to +8801712345678"))
	}))
	defer server.Close()

	sender, err := NewSender(config.SMSConfig{
		Provider: "greenweb",
		APIKey:   "tok-1",
		BaseURL:  server.URL,
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("build sender: %v", err)
	}
	if err := sender.Send(context.Background(), "+8801712345678", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestNewSenderUnknownProvider(t *testing.T) {
	t.Parallel()

	if _, err := NewSender(config.SMSConfig{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
