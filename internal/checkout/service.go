package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/cartline/internal/catalog"
	"github.com/example/cartline/internal/identity"
	"github.com/example/cartline/internal/orders"
	"github.com/example/cartline/internal/payments"
	"github.com/example/cartline/pkg/config"
	"github.com/example/cartline/pkg/db"
	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/example/cartline/pkg/metrics"
	"github.com/example/cartline/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PlacedNotifier tells the buyer their order landed.
type PlacedNotifier interface {
	SendOrderPlaced(ctx context.Context, order *models.Order)
}

// ItemInput is one cart line. VariantID may be omitted for products
// carrying a single variant.
type ItemInput struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Qty       int        `json:"qty" validate:"required,gt=0"`
}

// PlaceOrderInput is the full checkout submission.
type PlaceOrderInput struct {
	CustomerName  string
	Phone         types.Phone
	Address       string
	City          *string
	Area          *string
	Note          *string
	Items         []ItemInput
	PaymentMethod enums.PaymentMethod
	OTPCode       string
}

// InitiateResult is the first-step response. New COD buyers pause for an
// OTP round trip; gateway checkouts return the hosted payment URL.
type InitiateResult struct {
	RequiresOTP bool          `json:"requires_otp"`
	MaskedPhone string        `json:"masked_phone,omitempty"`
	Order       *models.Order `json:"order,omitempty"`
	PaymentURL  string        `json:"payment_url,omitempty"`
}

// Service orchestrates order placement end to end: identity resolution,
// stock reservation, order assembly and gateway dispatch.
type Service interface {
	Initiate(ctx context.Context, input PlaceOrderInput) (*InitiateResult, error)
	VerifyCreate(ctx context.Context, input PlaceOrderInput) (*InitiateResult, error)
}

type service struct {
	tx       txRunner
	identity identity.Service
	stock    catalog.Reserver
	catalog  catalog.Repository
	orders   orders.Repository
	registry *payments.Registry
	settings payments.SettingsService
	codes    CodeGenerator
	notifier PlacedNotifier
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	cfg      config.CheckoutConfig
	app      config.AppConfig
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	identitySvc identity.Service,
	stock catalog.Reserver,
	catalogRepo catalog.Repository,
	ordersRepo orders.Repository,
	registry *payments.Registry,
	settings payments.SettingsService,
	codes CodeGenerator,
	notifier PlacedNotifier,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
	cfg config.CheckoutConfig,
	app config.AppConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if identitySvc == nil {
		return nil, fmt.Errorf("identity service is required")
	}
	if stock == nil || catalogRepo == nil {
		return nil, fmt.Errorf("catalog dependencies are required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("payment registry is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("payment settings are required")
	}
	if codes == nil {
		return nil, fmt.Errorf("code generator is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		tx:       tx,
		identity: identitySvc,
		stock:    stock,
		catalog:  catalogRepo,
		orders:   ordersRepo,
		registry: registry,
		settings: settings,
		codes:    codes,
		notifier: notifier,
		metrics:  checkoutMetrics,
		logg:     logg,
		cfg:      cfg,
		app:      app,
	}, nil
}

// Initiate starts a checkout. A buyer already on file proceeds straight
// to placement regardless of payment method; new gateway buyers are
// provisioned on the spot; only new COD buyers pause for the OTP round
// trip completed by VerifyCreate.
func (s *service) Initiate(ctx context.Context, input PlaceOrderInput) (*InitiateResult, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	enabled, err := s.settings.MethodEnabled(ctx, input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if !enabled {
		s.metrics.IncCheckoutFailure("method_disabled")
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment method %s is not available", input.PaymentMethod))
	}

	user, err := s.identity.Lookup(ctx, input.Phone)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.place(ctx, user, input)
	}

	if input.PaymentMethod.GatewayRouted() {
		user, err := s.identity.ResolveProvisional(ctx, input.Phone, input.CustomerName)
		if err != nil {
			return nil, err
		}
		return s.place(ctx, user, input)
	}

	if err := s.identity.RequestOTP(ctx, input.Phone); err != nil {
		return nil, err
	}
	return &InitiateResult{RequiresOTP: true, MaskedPhone: input.Phone.Masked()}, nil
}

// VerifyCreate completes a COD checkout after the buyer proves their
// number with the OTP.
func (s *service) VerifyCreate(ctx context.Context, input PlaceOrderInput) (*InitiateResult, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	if input.PaymentMethod.GatewayRouted() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway checkouts do not use otp verification")
	}
	if input.OTPCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp code is required")
	}

	user, err := s.identity.ResolveVerified(ctx, input.Phone, input.CustomerName, input.OTPCode)
	if err != nil {
		return nil, err
	}
	return s.place(ctx, user, input)
}

func (s *service) validate(input PlaceOrderInput) error {
	if input.CustomerName == "" || input.Phone.IsZero() || input.Address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name, phone and address are required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product id is required")
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item qty must be positive")
		}
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	return nil
}

// place runs the placement saga: resolve cart lines to variants, reserve
// stock and persist the order in one transaction, then dispatch to the
// gateway. A failed dispatch compensates by deleting the order and
// returning the held stock.
func (s *service) place(ctx context.Context, user *models.User, input PlaceOrderInput) (*InitiateResult, error) {
	var order *models.Order
	var lines []catalog.ReservationLine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		resolved, err := s.resolveLines(ctx, s.catalog.WithTx(tx), input.Items)
		if err != nil {
			return err
		}
		lines = make([]catalog.ReservationLine, 0, len(resolved))
		for _, line := range resolved {
			lines = append(lines, catalog.ReservationLine{VariantID: line.variant.ID, Qty: line.qty})
		}
		if _, err := s.stock.ReserveLines(ctx, tx, lines); err != nil {
			return err
		}
		built, err := s.assemble(ctx, tx, user, input, resolved)
		if err != nil {
			return err
		}
		order = built
		return nil
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock) {
			s.metrics.IncReservationConflict()
			s.metrics.IncCheckoutFailure("out_of_stock")
			return nil, err
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		s.metrics.IncCheckoutFailure("internal")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "placing order")
	}

	ctx = s.logg.WithOrderCode(ctx, order.Code)

	if !input.PaymentMethod.GatewayRouted() {
		s.metrics.IncOrderCreated(input.PaymentMethod.String())
		s.logg.Info(ctx, "order placed")
		if s.notifier != nil {
			s.notifier.SendOrderPlaced(ctx, order)
		}
		return &InitiateResult{Order: order}, nil
	}

	session, err := s.dispatch(ctx, order, input)
	if err != nil {
		if cerr := s.compensate(ctx, order, lines); cerr != nil {
			// The order row survives a failed compensation; flag it loudly.
			s.logg.Error(ctx, "compensation failed after gateway error", multierr.Append(err, cerr))
		}
		s.metrics.IncCheckoutFailure("gateway")
		return nil, err
	}

	if session.PaymentID != "" {
		if err := s.orders.SetProviderPaymentID(ctx, order.ID, session.PaymentID); err != nil {
			s.logg.Error(ctx, "storing provider payment id", err)
		}
	}

	s.metrics.IncOrderCreated(input.PaymentMethod.String())
	s.logg.Info(ctx, "order placed, awaiting gateway")
	return &InitiateResult{Order: order, PaymentURL: session.RedirectURL}, nil
}

// resolvedLine pairs a cart quantity with the variant that will satisfy it.
type resolvedLine struct {
	variant models.ProductVariant
	qty     int
}

// resolveLines maps each cart line to a concrete variant. A missing
// variant id is acceptable only when the product carries a single
// variant; multi-variant products demand an explicit selection.
func (s *service) resolveLines(ctx context.Context, repo catalog.Repository, items []ItemInput) ([]resolvedLine, error) {
	resolved := make([]resolvedLine, 0, len(items))
	seen := map[uuid.UUID]bool{}
	for _, item := range items {
		variant, err := s.resolveVariant(ctx, repo, item)
		if err != nil {
			return nil, err
		}
		if seen[variant.ID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate line in cart")
		}
		seen[variant.ID] = true
		resolved = append(resolved, resolvedLine{variant: *variant, qty: item.Qty})
	}
	return resolved, nil
}

func (s *service) resolveVariant(ctx context.Context, repo catalog.Repository, item ItemInput) (*models.ProductVariant, error) {
	if item.VariantID != nil {
		variant, err := repo.FindVariant(ctx, *item.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading variant")
		}
		if variant.ProductID != item.ProductID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return variant, nil
	}

	variants, err := repo.FindVariantsByProduct(ctx, item.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product variants")
	}
	switch len(variants) {
	case 0:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	case 1:
		// Flat-stock products are modeled as a single implicit variant.
		return &variants[0], nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeVariantRequired, "product requires a variant selection")
	}
}

// unitPrice charges the discount price when one is set.
func unitPrice(variant models.ProductVariant) int64 {
	if variant.DiscountPriceCents > 0 {
		return variant.DiscountPriceCents
	}
	return variant.UnitPriceCents
}

func (s *service) assemble(ctx context.Context, tx *gorm.DB, user *models.User, input PlaceOrderInput, resolved []resolvedLine) (*models.Order, error) {
	ordersRepo := s.orders.WithTx(tx)

	var subtotal int64
	items := make([]models.OrderItem, 0, len(resolved))
	for _, line := range resolved {
		price := unitPrice(line.variant)
		total := price * int64(line.qty)
		subtotal += total
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			ProductID:      line.variant.ProductID,
			VariantID:      line.variant.ID,
			Name:           line.variant.Name,
			SKU:            line.variant.SKU,
			ImageURL:       line.variant.ImageURL,
			UnitPriceCents: price,
			Qty:            line.qty,
			TotalCents:     total,
		})
	}

	order := &models.Order{
		ID:                  uuid.New(),
		UserID:              user.ID,
		Status:              enums.OrderStatusPending,
		PaymentMethod:       input.PaymentMethod,
		PaymentStatus:       enums.PaymentStatusPending,
		SubtotalCents:       subtotal,
		DeliveryChargeCents: s.cfg.DeliveryChargeCents,
		TotalCents:          subtotal + s.cfg.DeliveryChargeCents,
		CustomerName:        input.CustomerName,
		CountryCode:         input.Phone.CountryCode,
		Number:              input.Phone.Number,
		Address:             input.Address,
		City:                input.City,
		Area:                input.Area,
		Note:                input.Note,
	}

	// Codes are random; retry the insert on the rare collision.
	retries := s.cfg.CodeRetries
	if retries <= 0 {
		retries = 5
	}
	var created *models.Order
	for attempt := 0; attempt < retries; attempt++ {
		order.Code = s.codes.Next()
		result, err := ordersRepo.CreateOrder(ctx, order)
		if err == nil {
			created = result
			break
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, err
		}
	}
	if created == nil {
		return nil, errors.New("exhausted order code attempts")
	}

	for i := range items {
		items[i].OrderID = created.ID
	}
	if err := ordersRepo.CreateItems(ctx, items); err != nil {
		return nil, err
	}
	created.Items = items

	if err := ordersRepo.AppendTimeline(ctx, &models.OrderTimelineEntry{
		ID:         uuid.New(),
		OrderID:    created.ID,
		FromStatus: "",
		ToStatus:   enums.OrderStatusPending.String(),
	}); err != nil {
		return nil, err
	}

	crmNote := "order placed"
	if err := ordersRepo.CreateCRMLog(ctx, &models.OrderCRMLog{
		ID:      uuid.New(),
		OrderID: created.ID,
		Status:  enums.CRMStatusPending,
		Note:    &crmNote,
	}); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) dispatch(ctx context.Context, order *models.Order, input PlaceOrderInput) (*payments.Session, error) {
	gw, err := s.registry.Lookup(input.PaymentMethod)
	if err != nil {
		return nil, err
	}

	req := payments.InitiateRequest{
		OrderCode:    order.Code,
		AmountCents:  order.TotalCents,
		Currency:     "BDT",
		CustomerName: order.CustomerName,
		Phone:        input.Phone,
		Address:      order.Address,
		SuccessURL:   s.callbackURL(order, "success"),
		FailURL:      s.callbackURL(order, "fail"),
		CancelURL:    s.callbackURL(order, "fail"),
	}

	start := time.Now()
	session, err := gw.Initiate(ctx, req)
	s.metrics.ObserveGatewayInitiate(input.PaymentMethod.String(), time.Since(start))
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) callbackURL(order *models.Order, kind string) string {
	switch order.PaymentMethod {
	case enums.PaymentMethodBkash:
		return fmt.Sprintf("%s/api/v1/payments/bkash/callback", s.app.BaseURL)
	case enums.PaymentMethodNagad:
		return fmt.Sprintf("%s/api/v1/payments/nagad/callback/%s", s.app.BaseURL, order.Code)
	default:
		if kind == "success" {
			return fmt.Sprintf("%s/api/v1/payments/ssl/success/%s", s.app.BaseURL, order.Code)
		}
		return fmt.Sprintf("%s/api/v1/payments/fail/%s", s.app.BaseURL, order.Code)
	}
}

// compensate undoes a placed order after the gateway refused the session.
func (s *service) compensate(ctx context.Context, order *models.Order, lines []catalog.ReservationLine) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var errs error
		if err := s.stock.ReleaseLines(ctx, tx, lines); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := s.orders.WithTx(tx).DeleteOrder(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, err)
		}
		return errs
	})
}
