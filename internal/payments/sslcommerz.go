package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/cartline/pkg/config"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
)

const (
	sslczSessionPath    = "/gwprocess/v4/api.php"
	sslczValidationPath = "/validator/api/validationserverAPI.php"
)

// SSLCommerzGateway drives the SSLCommerz hosted checkout API.
type SSLCommerzGateway struct {
	cfg    config.SSLCommerzConfig
	client *http.Client
}

// NewSSLCommerzGateway builds the adapter. A nil client falls back to a
// default with the configured timeout.
func NewSSLCommerzGateway(cfg config.SSLCommerzConfig, client *http.Client) (*SSLCommerzGateway, error) {
	if cfg.StoreID == "" || cfg.StorePassword == "" {
		return nil, fmt.Errorf("sslcommerz credentials are required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &SSLCommerzGateway{cfg: cfg, client: client}, nil
}

// Provider implements Gateway.
func (g *SSLCommerzGateway) Provider() enums.PaymentMethod {
	return enums.PaymentMethodSSLCommerz
}

type sslczSessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// Initiate opens a payment session and returns the hosted page URL.
func (g *SSLCommerzGateway) Initiate(ctx context.Context, req InitiateRequest) (*Session, error) {
	form := url.Values{}
	form.Set("store_id", g.cfg.StoreID)
	form.Set("store_passwd", g.cfg.StorePassword)
	form.Set("total_amount", FormatAmount(req.AmountCents))
	form.Set("currency", req.Currency)
	form.Set("tran_id", req.OrderCode)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("cus_name", req.CustomerName)
	form.Set("cus_phone", req.Phone.E164())
	form.Set("cus_add1", req.Address)
	form.Set("shipping_method", "NO")
	form.Set("product_name", req.OrderCode)
	form.Set("product_category", "general")
	form.Set("product_profile", "general")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+sslczSessionPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building sslcommerz request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "calling sslcommerz")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("sslcommerz returned %d: %s", resp.StatusCode, body))
	}

	var session sslczSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decoding sslcommerz response")
	}
	if !strings.EqualFold(session.Status, "SUCCESS") || session.GatewayPageURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("sslcommerz session rejected: %s", session.FailedReason))
	}

	return &Session{
		Provider:    enums.PaymentMethodSSLCommerz,
		RedirectURL: session.GatewayPageURL,
		PaymentID:   session.SessionKey,
	}, nil
}

// ValidationResult is the provider's server-to-server confirmation of a
// transaction referenced by an IPN payload.
type ValidationResult struct {
	Valid         bool
	OrderCode     string
	TransactionID string
	Amount        string
}

type sslczValidationResponse struct {
	Status string `json:"status"`
	TranID string `json:"tran_id"`
	BankID string `json:"bank_tran_id"`
	Amount string `json:"amount"`
}

// ValidateIPN confirms an IPN's val_id with the provider. Callback
// payloads alone are never trusted.
func (g *SSLCommerzGateway) ValidateIPN(ctx context.Context, valID string) (*ValidationResult, error) {
	if valID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "val_id is required")
	}

	query := url.Values{}
	query.Set("val_id", valID)
	query.Set("store_id", g.cfg.StoreID)
	query.Set("store_passwd", g.cfg.StorePassword)
	query.Set("format", "json")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+sslczValidationPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building validation request")
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "validating with sslcommerz")
	}
	defer resp.Body.Close()

	var payload sslczValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decoding validation response")
	}

	valid := strings.EqualFold(payload.Status, "VALID") || strings.EqualFold(payload.Status, "VALIDATED")
	return &ValidationResult{
		Valid:         valid,
		OrderCode:     payload.TranID,
		TransactionID: payload.BankID,
		Amount:        payload.Amount,
	}, nil
}
