package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/example/cartline/internal/catalog"
	"github.com/example/cartline/pkg/db"
	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type statusCapture struct {
	mu      sync.Mutex
	updates []enums.OrderStatus
}

func (c *statusCapture) SendStatusUpdate(_ context.Context, _ *models.Order, status enums.OrderStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, status)
}

type fixture struct {
	svc      Service
	db       *gorm.DB
	notifier *statusCapture
	userID   uuid.UUID
	variant  uuid.UUID
	order    *models.Order
}

type seed struct {
	method        enums.PaymentMethod
	paymentStatus enums.PaymentStatus
	status        enums.OrderStatus
}

func newFixture(t *testing.T, s seed) *fixture {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gormDB.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	variant := models.ProductVariant{
		ID:             uuid.New(),
		ProductID:      uuid.New(),
		SKU:            "SKU-1",
		Name:           "variant",
		UnitPriceCents: 10000,
		AvailableQty:   8,
		ReservedQty:    2,
	}
	if err := gormDB.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	userID := uuid.New()
	order := models.Order{
		ID:            uuid.New(),
		Code:          "ORD-TEST22",
		UserID:        userID,
		Status:        s.status,
		PaymentMethod: s.method,
		PaymentStatus: s.paymentStatus,
		SubtotalCents: 20000,
		TotalCents:    26000,
		CustomerName:  "Rahim",
		CountryCode:   "+880",
		Number:        "1712345678",
		Address:       "Dhaka",
	}
	if err := gormDB.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      variant.ProductID,
		VariantID:      variant.ID,
		Name:           variant.Name,
		SKU:            variant.SKU,
		UnitPriceCents: variant.UnitPriceCents,
		Qty:            2,
		TotalCents:     20000,
	}
	if err := gormDB.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	reserver, err := catalog.NewReserver(catalog.NewRepository(gormDB))
	if err != nil {
		t.Fatalf("build reserver: %v", err)
	}
	notifier := &statusCapture{}
	svc, err := NewService(
		NewRepository(gormDB),
		db.FromGorm(gormDB),
		reserver,
		notifier,
		logger.New(logger.Options{ServiceName: "test"}),
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	return &fixture{
		svc:      svc,
		db:       gormDB,
		notifier: notifier,
		userID:   userID,
		variant:  variant.ID,
		order:    &order,
	}
}

func (f *fixture) loadVariant(t *testing.T) models.ProductVariant {
	t.Helper()
	var variant models.ProductVariant
	if err := f.db.First(&variant, "id = ?", f.variant).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return variant
}

func codSeed() seed {
	return seed{
		method:        enums.PaymentMethodCOD,
		paymentStatus: enums.PaymentStatusPending,
		status:        enums.OrderStatusPending,
	}
}

func TestGetForUserHidesOtherBuyers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, codSeed())
	ctx := context.Background()

	order, err := f.svc.GetForUser(ctx, f.userID, "ORD-TEST22")
	if err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected items preloaded, got %d", len(order.Items))
	}

	_, err = f.svc.GetForUser(ctx, uuid.New(), "ORD-TEST22")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
}

func TestChangeStatusRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	f := newFixture(t, codSeed())
	_, err := f.svc.ChangeStatus(context.Background(), ChangeStatusInput{
		Code: "ORD-TEST22",
		Next: enums.OrderStatusShipped,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for pending->shipped, got %v", err)
	}
	if len(f.notifier.updates) != 0 {
		t.Fatalf("rejected transition must not notify, got %d", len(f.notifier.updates))
	}
}

func TestDeliveredCODCollectsPayment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, seed{
		method:        enums.PaymentMethodCOD,
		paymentStatus: enums.PaymentStatusPending,
		status:        enums.OrderStatusShipped,
	})
	ctx := context.Background()

	updated, err := f.svc.ChangeStatus(ctx, ChangeStatusInput{Code: "ORD-TEST22", Next: enums.OrderStatusDelivered})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if updated.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("delivery must collect cash, got %s", updated.PaymentStatus)
	}
	if updated.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}

	variant := f.loadVariant(t)
	if variant.ReservedQty != 0 || variant.AvailableQty != 8 {
		t.Fatalf("expected reservation committed, got %+v", variant)
	}
	if len(f.notifier.updates) != 1 || f.notifier.updates[0] != enums.OrderStatusDelivered {
		t.Fatalf("expected one delivered notification, got %+v", f.notifier.updates)
	}
}

func TestCancelReleasesStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, codSeed())
	ctx := context.Background()

	updated, err := f.svc.ChangeStatus(ctx, ChangeStatusInput{Code: "ORD-TEST22", Next: enums.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}

	variant := f.loadVariant(t)
	if variant.AvailableQty != 10 || variant.ReservedQty != 0 {
		t.Fatalf("expected stock released, got %+v", variant)
	}

	entries, err := f.svc.Timeline(ctx, "ORD-TEST22")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(entries) != 1 || entries[0].ToStatus != enums.OrderStatusCancelled.String() {
		t.Fatalf("expected cancel timeline entry, got %+v", entries)
	}
}

func TestDeleteGuardsSettledOrders(t *testing.T) {
	t.Parallel()

	f := newFixture(t, seed{
		method:        enums.PaymentMethodSSLCommerz,
		paymentStatus: enums.PaymentStatusPaid,
		status:        enums.OrderStatusConfirmed,
	})
	err := f.svc.Delete(context.Background(), "ORD-TEST22", nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for paid order, got %v", err)
	}
}

func TestDeleteReleasesPendingStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, codSeed())
	ctx := context.Background()

	if err := f.svc.Delete(ctx, "ORD-TEST22", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}

	variant := f.loadVariant(t)
	if variant.AvailableQty != 10 || variant.ReservedQty != 0 {
		t.Fatalf("expected stock released, got %+v", variant)
	}
	if _, err := f.svc.GetByCode(ctx, "ORD-TEST22"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected order gone, got %v", err)
	}
	var count int64
	if err := f.db.Model(&models.OrderItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected items removed, got %d", count)
	}
}

func TestConvertToCOD(t *testing.T) {
	t.Parallel()

	f := newFixture(t, seed{
		method:        enums.PaymentMethodBkash,
		paymentStatus: enums.PaymentStatusPending,
		status:        enums.OrderStatusPending,
	})
	ctx := context.Background()

	converted, err := f.svc.ConvertToCOD(ctx, "ORD-TEST22", nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if converted.PaymentMethod != enums.PaymentMethodCOD {
		t.Fatalf("expected cod, got %s", converted.PaymentMethod)
	}
	if converted.ProviderPaymentID != nil {
		t.Fatal("expected provider payment id cleared")
	}

	// Already COD now.
	if _, err := f.svc.ConvertToCOD(ctx, "ORD-TEST22", nil); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on second convert, got %v", err)
	}
}

func TestConvertToCODAfterFailedPayment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, seed{
		method:        enums.PaymentMethodBkash,
		paymentStatus: enums.PaymentStatusFailed,
		status:        enums.OrderStatusPending,
	})
	ctx := context.Background()

	converted, err := f.svc.ConvertToCOD(ctx, "ORD-TEST22", nil)
	if err != nil {
		t.Fatalf("convert after failed payment: %v", err)
	}
	if converted.PaymentMethod != enums.PaymentMethodCOD {
		t.Fatalf("expected cod, got %s", converted.PaymentMethod)
	}

	// The reservation from checkout was never released, so fulfilment
	// can proceed straight away.
	variant := f.loadVariant(t)
	if variant.AvailableQty != 8 || variant.ReservedQty != 2 {
		t.Fatalf("expected reservation intact, got %+v", variant)
	}
}

func TestCancelPaymentFailedOrderReleasesStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, seed{
		method:        enums.PaymentMethodBkash,
		paymentStatus: enums.PaymentStatusFailed,
		status:        enums.OrderStatusPending,
	})
	ctx := context.Background()

	updated, err := f.svc.ChangeStatus(ctx, ChangeStatusInput{Code: "ORD-TEST22", Next: enums.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}

	variant := f.loadVariant(t)
	if variant.AvailableQty != 10 || variant.ReservedQty != 0 {
		t.Fatalf("expected held stock returned, got %+v", variant)
	}
}

func TestConvertToCODRejectsSettled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, seed{
		method:        enums.PaymentMethodBkash,
		paymentStatus: enums.PaymentStatusPaid,
		status:        enums.OrderStatusConfirmed,
	})
	_, err := f.svc.ConvertToCOD(context.Background(), "ORD-TEST22", nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for paid order, got %v", err)
	}
}

func TestCRMLogs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, codSeed())
	ctx := context.Background()

	note := "buyer asked to deliver after 6pm"
	agentID := uuid.New()
	if err := f.svc.AddCRMLog(ctx, CRMLogInput{
		Code:    "ORD-TEST22",
		Status:  enums.CRMStatusContacted,
		AgentID: &agentID,
		Note:    &note,
	}); err != nil {
		t.Fatalf("add crm log: %v", err)
	}

	if err := f.svc.AddCRMLog(ctx, CRMLogInput{Code: "ORD-TEST22", Status: enums.CRMStatus("bogus")}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	logs, err := f.svc.ListCRMLogs(ctx, "ORD-TEST22")
	if err != nil {
		t.Fatalf("list crm logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one log, got %d", len(logs))
	}
	if logs[0].Status != enums.CRMStatusContacted || logs[0].Note == nil || *logs[0].Note != note {
		t.Fatalf("unexpected log %+v", logs[0])
	}
}
