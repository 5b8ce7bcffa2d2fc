package notify

import (
	"context"
	"testing"

	"github.com/example/cartline/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTemplateDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:templates_" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gormDB.AutoMigrate(&models.SMSTemplate{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormDB
}

func TestRenderFallsBackToDefault(t *testing.T) {
	t.Parallel()

	store := NewTemplateStore(NewTemplateRepository(newTemplateDB(t)))
	body, err := store.Render(context.Background(), TemplateOTP, map[string]string{
		"code":        "123456",
		"ttl_minutes": "5",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if body != "Your verification code is 123456. It expires in 5 minutes." {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRenderIgnoresInactiveRow(t *testing.T) {
	t.Parallel()

	gormDB := newTemplateDB(t)
	row := models.SMSTemplate{
		ID:     uuid.New(),
		Name:   TemplateOTP,
		Body:   "custom {code}",
		Active: false,
	}
	if err := gormDB.Create(&row).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewTemplateStore(NewTemplateRepository(gormDB))
	body, err := store.Render(context.Background(), TemplateOTP, map[string]string{
		"code":        "123456",
		"ttl_minutes": "5",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if body == "custom 123456" {
		t.Fatal("inactive template must not be used")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	t.Parallel()

	store := NewTemplateStore(NewTemplateRepository(newTemplateDB(t)))
	if _, err := store.Render(context.Background(), "nonexistent", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestSubstituteLeavesUnknownPlaceholders(t *testing.T) {
	t.Parallel()

	got := substitute("Hi {name}, ref {missing}", map[string]string{"name": "Rahim"})
	if got != "Hi Rahim, ref {missing}" {
		t.Fatalf("unexpected result %q", got)
	}
}
