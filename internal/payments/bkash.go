package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/example/cartline/pkg/config"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/sethvargo/go-retry"
)

const (
	bkashTokenPath   = "/tokenized/checkout/token/grant"
	bkashCreatePath  = "/tokenized/checkout/create"
	bkashExecutePath = "/tokenized/checkout/execute"

	bkashSuccessCode = "0000"

	// Grant tokens last an hour; refresh a little early.
	bkashTokenSlack = 5 * time.Minute
)

// BkashGateway drives the bKash tokenized checkout API. Initiate creates
// the payment and Execute finalizes it once the buyer approves on the
// hosted page.
type BkashGateway struct {
	cfg    config.BkashConfig
	client *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewBkashGateway builds the adapter. A nil client falls back to a
// default with the configured timeout.
func NewBkashGateway(cfg config.BkashConfig, client *http.Client) (*BkashGateway, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("bkash credentials are required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &BkashGateway{cfg: cfg, client: client}, nil
}

// Provider implements Gateway.
func (g *BkashGateway) Provider() enums.PaymentMethod {
	return enums.PaymentMethodBkash
}

type bkashTokenResponse struct {
	IDToken   string `json:"id_token"`
	ExpiresIn int    `json:"expires_in"`
	Msg       string `json:"msg"`
}

func (g *BkashGateway) grantToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	if g.token != "" && time.Now().Before(g.tokenExpiry) {
		token := g.token
		g.mu.Unlock()
		return token, nil
	}
	g.mu.Unlock()

	body, err := json.Marshal(map[string]string{
		"app_key":    g.cfg.AppKey,
		"app_secret": g.cfg.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("encoding token request: %w", err)
	}

	var grant bkashTokenResponse
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+bkashTokenPath, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("username", g.cfg.Username)
		httpReq.Header.Set("password", g.cfg.Password)

		resp, err := g.client.Do(httpReq)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("bkash token grant returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("bkash token grant returned %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
			return fmt.Errorf("decoding token grant: %w", err)
		}
		if grant.IDToken == "" {
			return fmt.Errorf("bkash token grant rejected: %s", grant.Msg)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	expiry := time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	g.mu.Lock()
	g.token = grant.IDToken
	g.tokenExpiry = expiry.Add(-bkashTokenSlack)
	g.mu.Unlock()
	return grant.IDToken, nil
}

type bkashCreateResponse struct {
	PaymentID     string `json:"paymentID"`
	BkashURL      string `json:"bkashURL"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

// Initiate creates a tokenized payment and returns the hosted approval URL.
func (g *BkashGateway) Initiate(ctx context.Context, req InitiateRequest) (*Session, error) {
	token, err := g.grantToken(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "acquiring bkash token")
	}

	payload := map[string]string{
		"mode":                  "0011",
		"payerReference":        req.Phone.E164(),
		"callbackURL":           req.SuccessURL,
		"amount":                FormatAmount(req.AmountCents),
		"currency":              req.Currency,
		"intent":                "sale",
		"merchantInvoiceNumber": req.OrderCode,
	}

	var created bkashCreateResponse
	if err := g.post(ctx, bkashCreatePath, token, payload, &created); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "creating bkash payment")
	}
	if created.StatusCode != bkashSuccessCode || created.BkashURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("bkash create rejected: %s", created.StatusMessage))
	}

	return &Session{
		Provider:    enums.PaymentMethodBkash,
		RedirectURL: created.BkashURL,
		PaymentID:   created.PaymentID,
	}, nil
}

type bkashExecuteResponse struct {
	StatusCode        string `json:"statusCode"`
	StatusMessage     string `json:"statusMessage"`
	TrxID             string `json:"trxID"`
	TransactionStatus string `json:"transactionStatus"`
}

// Execute finalizes the payment. Only a Completed transaction with the
// success status code counts as settled.
func (g *BkashGateway) Execute(ctx context.Context, paymentID string) (*ExecuteResult, error) {
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentID is required")
	}
	token, err := g.grantToken(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "acquiring bkash token")
	}

	var executed bkashExecuteResponse
	if err := g.post(ctx, bkashExecutePath, token, map[string]string{"paymentID": paymentID}, &executed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "executing bkash payment")
	}

	settled := executed.StatusCode == bkashSuccessCode && executed.TransactionStatus == "Completed"
	return &ExecuteResult{
		Settled:       settled,
		TransactionID: executed.TrxID,
		RawStatus:     executed.StatusCode,
	}, nil
}

func (g *BkashGateway) post(ctx context.Context, path, token string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", token)
	httpReq.Header.Set("X-APP-Key", g.cfg.AppKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("bkash returned %d: %s", resp.StatusCode, raw)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
