package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/cartline/pkg/db/models"
	"gorm.io/gorm"
)

// Template names used by the notification flows.
const (
	TemplateOTP             = "otp"
	TemplateAccountCreated  = "account_created"
	TemplateOrderPlaced     = "order_placed"
	TemplatePaymentReceived = "payment_received"
	TemplateStatusUpdate    = "status_update"
)

// defaultTemplates back every message so a missing or disabled row never
// silences a flow. Admin-managed rows in sms_templates override these.
var defaultTemplates = map[string]string{
	TemplateOTP:             "Your verification code is {code}. It expires in {ttl_minutes} minutes.",
	TemplateAccountCreated:  "Dear {name}, your account has been created. Sign in with your phone number to track your orders.",
	TemplateOrderPlaced:     "Dear {name}, your order {order_code} for {total} BDT has been placed. We will confirm it shortly.",
	TemplatePaymentReceived: "Dear {name}, we received your payment of {total} BDT for order {order_code}. Thank you!",
	TemplateStatusUpdate:    "Dear {name}, your order {order_code} is now {status}.",
}

// TemplateStore renders named message bodies with {placeholder} values.
type TemplateStore interface {
	Render(ctx context.Context, name string, vars map[string]string) (string, error)
}

// TemplateRepository reads admin-managed template rows.
type TemplateRepository interface {
	FindByName(ctx context.Context, name string) (*models.SMSTemplate, error)
	Upsert(ctx context.Context, template *models.SMSTemplate) error
	List(ctx context.Context) ([]models.SMSTemplate, error)
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository builds a template repository bound to the provided DB.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) FindByName(ctx context.Context, name string) (*models.SMSTemplate, error) {
	var template models.SMSTemplate
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *templateRepository) Upsert(ctx context.Context, template *models.SMSTemplate) error {
	return r.db.WithContext(ctx).Save(template).Error
}

func (r *templateRepository) List(ctx context.Context) ([]models.SMSTemplate, error) {
	var templates []models.SMSTemplate
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

type templateStore struct {
	repo TemplateRepository
}

// NewTemplateStore builds a store that prefers database rows and falls
// back to the compiled-in defaults.
func NewTemplateStore(repo TemplateRepository) TemplateStore {
	return &templateStore{repo: repo}
}

func (s *templateStore) Render(ctx context.Context, name string, vars map[string]string) (string, error) {
	body := ""
	if s.repo != nil {
		row, err := s.repo.FindByName(ctx, name)
		switch {
		case err == nil && row.Active:
			body = row.Body
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return "", fmt.Errorf("loading template %s: %w", name, err)
		}
	}
	if body == "" {
		fallback, ok := defaultTemplates[name]
		if !ok {
			return "", fmt.Errorf("unknown template %s", name)
		}
		body = fallback
	}
	return substitute(body, vars), nil
}

func substitute(body string, vars map[string]string) string {
	if len(vars) == 0 {
		return body
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}
