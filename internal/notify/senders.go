package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/cartline/pkg/config"
	pkgerrors "github.com/example/cartline/pkg/errors"
)

// Sender delivers a single SMS to one recipient.
type Sender interface {
	Name() string
	Send(ctx context.Context, recipient, body string) error
}

// NewSender builds the provider named in the config.
func NewSender(cfg config.SMSConfig) (Sender, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case "bulksmsbd":
		return &bulkSMSBDSender{cfg: cfg, client: client}, nil
	case "greenweb":
		return &greenwebSender{cfg: cfg, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

type bulkSMSBDSender struct {
	cfg    config.SMSConfig
	client *http.Client
}

func (s *bulkSMSBDSender) Name() string { return "bulksmsbd" }

func (s *bulkSMSBDSender) Send(ctx context.Context, recipient, body string) error {
	form := url.Values{
		"api_key":  {s.cfg.APIKey},
		"senderid": {s.cfg.SenderID},
		"type":     {"text"},
		"number":   {recipient},
		"message":  {body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building sms request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling sms provider")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading sms response")
	}
	var payload struct {
		ResponseCode int    `json:"response_code"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "sms provider returned an unreadable response")
	}
	// 202 is the provider's accepted code.
	if resp.StatusCode != http.StatusOK || payload.ResponseCode != 202 {
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sms rejected: code=%d message=%s", payload.ResponseCode, payload.ErrorMessage))
	}
	return nil
}

type greenwebSender struct {
	cfg    config.SMSConfig
	client *http.Client
}

func (s *greenwebSender) Name() string { return "greenweb" }

func (s *greenwebSender) Send(ctx context.Context, recipient, body string) error {
	form := url.Values{
		"token":   {s.cfg.APIKey},
		"to":      {recipient},
		"message": {body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building sms request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling sms provider")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading sms response")
	}
	// The API answers with a plain-text line per recipient.
	if resp.StatusCode != http.StatusOK || !strings.Contains(strings.ToLower(string(raw)), "ok") {
		return pkgerrors.New(pkgerrors.CodeDependency, "sms rejected: "+strings.TrimSpace(string(raw)))
	}
	return nil
}
