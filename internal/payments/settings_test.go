package payments

import (
	"context"
	"testing"

	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSettingsService(t *testing.T) (SettingsService, *gorm.DB) {
	t.Helper()
	dsn := "file:paysettings_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.PaymentSetting{}); err != nil {
		t.Fatalf("migrate settings: %v", err)
	}
	svc, err := NewSettingsService(NewSettingsRepository(db))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, db
}

func TestMethodEnabledDefaults(t *testing.T) {
	t.Parallel()

	svc, _ := newSettingsService(t)
	ctx := context.Background()

	// COD never needs a settings row.
	enabled, err := svc.MethodEnabled(ctx, enums.PaymentMethodCOD)
	if err != nil {
		t.Fatalf("cod: %v", err)
	}
	if !enabled {
		t.Fatal("expected cod to be enabled")
	}

	// Gateway methods default to disabled without a row.
	enabled, err = svc.MethodEnabled(ctx, enums.PaymentMethodBkash)
	if err != nil {
		t.Fatalf("bkash: %v", err)
	}
	if enabled {
		t.Fatal("expected bkash to be disabled without settings")
	}

	if _, err := svc.MethodEnabled(ctx, enums.PaymentMethod("paypal")); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateAndEnableMethod(t *testing.T) {
	t.Parallel()

	svc, _ := newSettingsService(t)
	ctx := context.Background()

	setting := &models.PaymentSetting{
		ID:       uuid.New(),
		Provider: enums.PaymentMethodBkash,
		Enabled:  true,
	}
	if err := svc.Update(ctx, setting); err != nil {
		t.Fatalf("update: %v", err)
	}

	enabled, err := svc.MethodEnabled(ctx, enums.PaymentMethodBkash)
	if err != nil {
		t.Fatalf("method enabled: %v", err)
	}
	if !enabled {
		t.Fatal("expected bkash to be enabled after update")
	}

	// COD rows are rejected, the method has no gateway settings.
	err = svc.Update(ctx, &models.PaymentSetting{ID: uuid.New(), Provider: enums.PaymentMethodCOD})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 setting, got %d", len(list))
	}
}
