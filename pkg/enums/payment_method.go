package enums

import "fmt"

// PaymentMethod identifies how a buyer settles an order.
type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodSSLCommerz PaymentMethod = "sslcommerz"
	PaymentMethodBkash      PaymentMethod = "bkash"
	PaymentMethodNagad      PaymentMethod = "nagad"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodSSLCommerz,
	PaymentMethodBkash,
	PaymentMethodNagad,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// GatewayRouted reports whether the method settles through an external
// payment gateway rather than on delivery.
func (p PaymentMethod) GatewayRouted() bool {
	switch p {
	case PaymentMethodSSLCommerz, PaymentMethodBkash, PaymentMethodNagad:
		return true
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
