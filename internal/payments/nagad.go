package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/cartline/pkg/config"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
)

const nagadCheckoutPath = "/api/dfs/check-out/initialize"

// NagadGateway drives the Nagad merchant checkout API.
type NagadGateway struct {
	cfg    config.NagadConfig
	client *http.Client
	now    func() time.Time
}

// NewNagadGateway builds the adapter. A nil client falls back to a
// default with the configured timeout.
func NewNagadGateway(cfg config.NagadConfig, client *http.Client) (*NagadGateway, error) {
	if cfg.MerchantID == "" {
		return nil, fmt.Errorf("nagad merchant id is required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &NagadGateway{cfg: cfg, client: client, now: time.Now}, nil
}

// Provider implements Gateway.
func (g *NagadGateway) Provider() enums.PaymentMethod {
	return enums.PaymentMethodNagad
}

type nagadCheckoutResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	PaymentRefID string `json:"paymentReferenceId"`
	CallBackURL  string `json:"callBackUrl"`
}

// Initiate opens a checkout session and returns the hosted payment URL.
func (g *NagadGateway) Initiate(ctx context.Context, req InitiateRequest) (*Session, error) {
	payload := map[string]string{
		"merchantId":          g.cfg.MerchantID,
		"orderId":             req.OrderCode,
		"amount":              FormatAmount(req.AmountCents),
		"currencyCode":        req.Currency,
		"challenge":           g.now().UTC().Format("20060102150405"),
		"merchantCallbackURL": req.SuccessURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding nagad request")
	}

	endpoint := fmt.Sprintf("%s%s/%s/%s", g.cfg.BaseURL, nagadCheckoutPath, g.cfg.MerchantID, req.OrderCode)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building nagad request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-KM-Api-Version", "v-0.2.0")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "calling nagad")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("nagad returned %d: %s", resp.StatusCode, raw))
	}

	var checkout nagadCheckoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decoding nagad response")
	}
	if checkout.Status != "Success" || checkout.CallBackURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("nagad session rejected: %s", checkout.Message))
	}

	return &Session{
		Provider:    enums.PaymentMethodNagad,
		RedirectURL: checkout.CallBackURL,
		PaymentID:   checkout.PaymentRefID,
	}, nil
}
