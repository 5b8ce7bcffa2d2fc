package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository persists per-provider payment settings.
type SettingsRepository interface {
	WithTx(tx *gorm.DB) SettingsRepository
	Find(ctx context.Context, provider enums.PaymentMethod) (*models.PaymentSetting, error)
	List(ctx context.Context) ([]models.PaymentSetting, error)
	Upsert(ctx context.Context, setting *models.PaymentSetting) error
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository builds a payment settings repository.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) WithTx(tx *gorm.DB) SettingsRepository {
	if tx == nil {
		return r
	}
	return &settingsRepository{db: tx}
}

func (r *settingsRepository) Find(ctx context.Context, provider enums.PaymentMethod) (*models.PaymentSetting, error) {
	var setting models.PaymentSetting
	err := r.db.WithContext(ctx).Where("provider = ?", provider).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *settingsRepository) List(ctx context.Context) ([]models.PaymentSetting, error) {
	var settings []models.PaymentSetting
	if err := r.db.WithContext(ctx).Order("provider ASC").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, setting *models.PaymentSetting) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "live_mode", "key_id", "key_secret", "extra", "updated_at"}),
		}).
		Create(setting).Error
}

// SettingsService answers whether a payment method may be offered. COD is
// always available; gateway methods need an enabled settings row.
type SettingsService interface {
	MethodEnabled(ctx context.Context, method enums.PaymentMethod) (bool, error)
	List(ctx context.Context) ([]models.PaymentSetting, error)
	Update(ctx context.Context, setting *models.PaymentSetting) error
}

type settingsService struct {
	repo SettingsRepository
}

// NewSettingsService builds the settings service.
func NewSettingsService(repo SettingsRepository) (SettingsService, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	return &settingsService{repo: repo}, nil
}

func (s *settingsService) MethodEnabled(ctx context.Context, method enums.PaymentMethod) (bool, error) {
	if !method.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %s", method))
	}
	if !method.GatewayRouted() {
		return true, nil
	}
	setting, err := s.repo.Find(ctx, method)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment setting")
	}
	return setting.Enabled, nil
}

func (s *settingsService) List(ctx context.Context) ([]models.PaymentSetting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payment settings")
	}
	return settings, nil
}

func (s *settingsService) Update(ctx context.Context, setting *models.PaymentSetting) error {
	if setting == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting is required")
	}
	if !setting.Provider.IsValid() || !setting.Provider.GatewayRouted() {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider must be a gateway method")
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving payment setting")
	}
	return nil
}
