package enums

import "testing"

func TestPaymentMethodGatewayRouted(t *testing.T) {
	if PaymentMethodCOD.GatewayRouted() {
		t.Fatalf("cod should not be gateway routed")
	}
	for _, m := range []PaymentMethod{PaymentMethodSSLCommerz, PaymentMethodBkash, PaymentMethodNagad} {
		if !m.GatewayRouted() {
			t.Fatalf("%s should be gateway routed", m)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("bkash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != PaymentMethodBkash {
		t.Fatalf("unexpected method %s", m)
	}
	if _, err := ParsePaymentMethod("paypal"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusReturned, true},
		{OrderStatusDelivered, OrderStatusReturned, true},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusReturned, OrderStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	if PaymentStatusPending.Terminal() {
		t.Fatalf("pending should not be terminal")
	}
	if !PaymentStatusPaid.Terminal() || !PaymentStatusFailed.Terminal() {
		t.Fatalf("paid and failed should be terminal")
	}
}

func TestParseOrderStatus(t *testing.T) {
	if _, err := ParseOrderStatus("shipped"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOrderStatus("lost"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
