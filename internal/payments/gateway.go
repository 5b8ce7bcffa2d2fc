package payments

import (
	"context"
	"fmt"

	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/types"
	"github.com/shopspring/decimal"
)

// InitiateRequest carries everything a provider needs to open a hosted
// payment session for an order.
type InitiateRequest struct {
	OrderCode    string
	AmountCents  int64
	Currency     string
	CustomerName string
	Phone        types.Phone
	Address      string
	SuccessURL   string
	FailURL      string
	CancelURL    string
}

// Session is the provider-side handle for a payment in flight. The buyer
// is redirected to RedirectURL; PaymentID is the provider's identifier
// used to correlate callbacks.
type Session struct {
	Provider    enums.PaymentMethod
	RedirectURL string
	PaymentID   string
}

// ExecuteResult reports the outcome of finalizing a payment with the
// provider after the buyer returns from the hosted page.
type ExecuteResult struct {
	Settled       bool
	TransactionID string
	RawStatus     string
}

// Gateway opens hosted payment sessions with one provider.
type Gateway interface {
	Provider() enums.PaymentMethod
	Initiate(ctx context.Context, req InitiateRequest) (*Session, error)
}

// Executor finalizes a payment server-side. Providers whose callbacks are
// only a hint (bKash) implement this; the settlement flow calls it before
// trusting the callback.
type Executor interface {
	Execute(ctx context.Context, paymentID string) (*ExecuteResult, error)
}

// Registry resolves the gateway for a payment method.
type Registry struct {
	gateways map[enums.PaymentMethod]Gateway
}

// NewRegistry indexes the provided gateways by provider.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	indexed := make(map[enums.PaymentMethod]Gateway, len(gateways))
	for _, gw := range gateways {
		if gw == nil {
			return nil, fmt.Errorf("nil gateway provided")
		}
		method := gw.Provider()
		if _, dup := indexed[method]; dup {
			return nil, fmt.Errorf("duplicate gateway for %s", method)
		}
		indexed[method] = gw
	}
	return &Registry{gateways: indexed}, nil
}

// Lookup returns the gateway registered for the method.
func (r *Registry) Lookup(method enums.PaymentMethod) (Gateway, error) {
	gw, ok := r.gateways[method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no gateway for method %s", method))
	}
	return gw, nil
}

// LookupExecutor returns the executor for the method when the provider
// supports server-side finalization.
func (r *Registry) LookupExecutor(method enums.PaymentMethod) (Executor, bool) {
	gw, ok := r.gateways[method]
	if !ok {
		return nil, false
	}
	exec, ok := gw.(Executor)
	return exec, ok
}

// FormatAmount renders cents as the two-decimal string the provider APIs
// expect ("260.00").
func FormatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
