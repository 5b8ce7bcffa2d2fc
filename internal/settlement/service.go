package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/cartline/internal/catalog"
	"github.com/example/cartline/internal/orders"
	"github.com/example/cartline/internal/payments"
	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/example/cartline/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IPNValidator confirms an SSLCommerz notification with the provider
// before it is believed.
type IPNValidator interface {
	ValidateIPN(ctx context.Context, valID string) (*payments.ValidationResult, error)
}

// PaymentNotifier tells the buyer their payment settled.
type PaymentNotifier interface {
	SendPaymentReceived(ctx context.Context, order *models.Order)
}

// Service reconciles gateway callbacks against orders. Every entry point
// is idempotent: a callback for an order already settled or failed is
// acknowledged without side effects.
type Service interface {
	HandleSuccess(ctx context.Context, orderCode, tranID string) (*models.Order, error)
	HandleFailure(ctx context.Context, orderCode string) (*models.Order, error)
	HandleIPN(ctx context.Context, valID string) error
	HandleBkashCallback(ctx context.Context, paymentID, status string) (*models.Order, error)
}

type service struct {
	tx        txRunner
	orders    orders.Repository
	stock     catalog.Reserver
	registry  *payments.Registry
	validator IPNValidator
	notifier  PaymentNotifier
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
}

// NewService builds the settlement service.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	stock catalog.Reserver,
	registry *payments.Registry,
	validator IPNValidator,
	notifier PaymentNotifier,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("payment registry is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		tx:        tx,
		orders:    ordersRepo,
		stock:     stock,
		registry:  registry,
		validator: validator,
		notifier:  notifier,
		metrics:   settlementMetrics,
		logg:      logg,
	}, nil
}

// HandleSuccess settles the order referenced by a success redirect.
func (s *service) HandleSuccess(ctx context.Context, orderCode, tranID string) (*models.Order, error) {
	order, err := s.findByCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	settled, err := s.settle(ctx, order, tranID)
	if err != nil {
		s.metrics.IncCallback(order.PaymentMethod.String(), "error")
		return nil, err
	}
	s.metrics.IncCallback(order.PaymentMethod.String(), "paid")
	return settled, nil
}

// HandleFailure marks the order's payment failed. Fulfilment and the
// stock hold are left alone so staff can follow up, e.g. by converting
// the order to cash on delivery.
func (s *service) HandleFailure(ctx context.Context, orderCode string) (*models.Order, error) {
	order, err := s.findByCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	failed, err := s.fail(ctx, order, "payment failed or cancelled at gateway")
	if err != nil {
		s.metrics.IncCallback(order.PaymentMethod.String(), "error")
		return nil, err
	}
	s.metrics.IncCallback(order.PaymentMethod.String(), "failed")
	return failed, nil
}

// HandleIPN processes an SSLCommerz server-to-server notification. The
// val_id is confirmed with the provider; the payload itself is never
// trusted.
func (s *service) HandleIPN(ctx context.Context, valID string) error {
	if s.validator == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "ipn validation is not configured")
	}
	result, err := s.validator.ValidateIPN(ctx, valID)
	if err != nil {
		return err
	}
	if !result.Valid {
		s.metrics.IncCallback(enums.PaymentMethodSSLCommerz.String(), "invalid")
		return pkgerrors.New(pkgerrors.CodeValidation, "ipn did not validate")
	}

	order, err := s.findByCode(ctx, result.OrderCode)
	if err != nil {
		return err
	}
	if _, err := s.settle(ctx, order, result.TransactionID); err != nil {
		s.metrics.IncCallback(order.PaymentMethod.String(), "error")
		return err
	}
	s.metrics.IncCallback(order.PaymentMethod.String(), "paid")
	return nil
}

// HandleBkashCallback finalizes a bKash payment. The callback only hints
// at the outcome; Execute is the source of truth.
func (s *service) HandleBkashCallback(ctx context.Context, paymentID, status string) (*models.Order, error) {
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentID is required")
	}

	order, err := s.orders.FindByProviderPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}

	if status != "success" {
		failed, err := s.fail(ctx, order, "bkash payment aborted by buyer")
		if err != nil {
			return nil, err
		}
		s.metrics.IncCallback(order.PaymentMethod.String(), "failed")
		return failed, nil
	}

	executor, ok := s.registry.LookupExecutor(enums.PaymentMethodBkash)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bkash executor is not configured")
	}
	result, err := executor.Execute(ctx, paymentID)
	if err != nil {
		s.metrics.IncCallback(order.PaymentMethod.String(), "error")
		return nil, err
	}
	if !result.Settled {
		failed, err := s.fail(ctx, order, "bkash execute did not settle")
		if err != nil {
			return nil, err
		}
		s.metrics.IncCallback(order.PaymentMethod.String(), "failed")
		return failed, nil
	}

	settled, err := s.settle(ctx, order, result.TransactionID)
	if err != nil {
		s.metrics.IncCallback(order.PaymentMethod.String(), "error")
		return nil, err
	}
	s.metrics.IncCallback(order.PaymentMethod.String(), "paid")
	return settled, nil
}

func (s *service) findByCode(ctx context.Context, code string) (*models.Order, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order code is required")
	}
	order, err := s.orders.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

// settle marks the order paid and confirms it. The terminal check runs
// inside the transaction against a fresh read, so replayed callbacks
// turn into no-ops instead of double settlements.
func (s *service) settle(ctx context.Context, order *models.Order, tranID string) (*models.Order, error) {
	var already bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if fresh.PaymentStatus.Terminal() {
			already = true
			return nil
		}
		if err := repo.MarkPaid(ctx, order.ID, tranID, time.Now().UTC()); err != nil {
			return err
		}
		if err := s.stock.CommitLines(ctx, tx, linesFromItems(fresh.Items)); err != nil {
			return err
		}
		if fresh.Status == enums.OrderStatusPending {
			if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed); err != nil {
				return err
			}
			return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
				ID:         uuid.New(),
				OrderID:    order.ID,
				FromStatus: fresh.Status.String(),
				ToStatus:   enums.OrderStatusConfirmed.String(),
			})
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settling order")
	}

	updated, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading order")
	}

	ctx = s.logg.WithOrderCode(ctx, order.Code)
	if already {
		s.logg.Info(ctx, "duplicate settlement callback ignored")
		return updated, nil
	}
	s.logg.Info(ctx, "payment settled")
	if s.notifier != nil {
		s.notifier.SendPaymentReceived(ctx, updated)
	}
	return updated, nil
}

// fail flips the payment to failed and records the cause. Fulfilment
// status and the reserved stock are untouched: the order stays pending
// so staff can convert it to cash or cancel it explicitly.
func (s *service) fail(ctx context.Context, order *models.Order, cause string) (*models.Order, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if fresh.PaymentStatus.Terminal() {
			return nil
		}
		if err := repo.MarkPaymentFailed(ctx, order.ID); err != nil {
			return err
		}
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			ID:         uuid.New(),
			OrderID:    order.ID,
			FromStatus: fresh.Status.String(),
			ToStatus:   fresh.Status.String(),
			Note:       &cause,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failing order")
	}

	updated, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading order")
	}
	s.logg.Info(s.logg.WithOrderCode(ctx, order.Code), "payment failed, order held for follow-up")
	return updated, nil
}

func linesFromItems(items []models.OrderItem) []catalog.ReservationLine {
	lines := make([]catalog.ReservationLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, catalog.ReservationLine{VariantID: item.VariantID, Qty: item.Qty})
	}
	return lines
}
