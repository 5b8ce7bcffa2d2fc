package payments

import (
	"context"
	"testing"

	"github.com/example/cartline/pkg/enums"
)

type stubGateway struct {
	method enums.PaymentMethod
}

func (s *stubGateway) Provider() enums.PaymentMethod { return s.method }

func (s *stubGateway) Initiate(context.Context, InitiateRequest) (*Session, error) {
	return &Session{Provider: s.method}, nil
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(&stubGateway{method: enums.PaymentMethodBkash}, &stubGateway{method: enums.PaymentMethodNagad})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	gw, err := reg.Lookup(enums.PaymentMethodBkash)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if gw.Provider() != enums.PaymentMethodBkash {
		t.Fatalf("unexpected provider %s", gw.Provider())
	}

	if _, err := reg.Lookup(enums.PaymentMethodSSLCommerz); err == nil {
		t.Fatal("expected error for unregistered method")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(&stubGateway{method: enums.PaymentMethodBkash}, &stubGateway{method: enums.PaymentMethodBkash})
	if err == nil {
		t.Fatal("expected duplicate gateway error")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{26000, "260.00"},
		{100, "1.00"},
		{5, "0.05"},
		{123456, "1234.56"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.cents); got != tt.want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
