package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/cartline/internal/catalog"
	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StatusNotifier sends the buyer a text when their order moves.
type StatusNotifier interface {
	SendStatusUpdate(ctx context.Context, order *models.Order, status enums.OrderStatus)
}

// ChangeStatusInput carries an admin-driven lifecycle transition.
type ChangeStatusInput struct {
	Code    string
	Next    enums.OrderStatus
	ActorID *uuid.UUID
	Note    *string
}

// CRMLogInput records an agent follow-up on an order.
type CRMLogInput struct {
	Code    string
	Status  enums.CRMStatus
	AgentID *uuid.UUID
	Note    *string
}

// Service covers buyer reads and the admin-side order lifecycle.
type Service interface {
	GetForUser(ctx context.Context, userID uuid.UUID, code string) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	GetByCode(ctx context.Context, code string) (*models.Order, error)
	Timeline(ctx context.Context, code string) ([]models.OrderTimelineEntry, error)

	ChangeStatus(ctx context.Context, input ChangeStatusInput) (*models.Order, error)
	Delete(ctx context.Context, code string, actorID *uuid.UUID) error
	ConvertToCOD(ctx context.Context, code string, actorID *uuid.UUID) (*models.Order, error)

	AddCRMLog(ctx context.Context, input CRMLogInput) error
	ListCRMLogs(ctx context.Context, code string) ([]models.OrderCRMLog, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	stock    catalog.Reserver
	notifier StatusNotifier
	logg     *logger.Logger
}

// NewService builds the orders service.
func NewService(repo Repository, tx txRunner, stock catalog.Reserver, notifier StatusNotifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, tx: tx, stock: stock, notifier: notifier, logg: logg}, nil
}

func (s *service) GetForUser(ctx context.Context, userID uuid.UUID, code string) (*models.Order, error) {
	order, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		// Hide other buyers' orders rather than admitting they exist.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return orders, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Order, error) {
	order, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (s *service) Timeline(ctx context.Context, code string) ([]models.OrderTimelineEntry, error) {
	order, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListTimeline(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading timeline")
	}
	return entries, nil
}

// ChangeStatus moves an order through its lifecycle. Delivery of a COD
// order collects the cash, so payment flips to paid and the reservation
// is burned; cancellation of an unpaid order returns the held stock.
func (s *service) ChangeStatus(ctx context.Context, input ChangeStatusInput) (*models.Order, error) {
	if !input.Next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	order, err := s.GetByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(input.Next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Next)).
			WithDetails(map[string]string{"from": order.Status.String(), "to": input.Next.String()})
	}

	prev := order.Status
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStatus(ctx, order.ID, input.Next); err != nil {
			return err
		}
		if err := repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			ID:         uuid.New(),
			OrderID:    order.ID,
			FromStatus: prev.String(),
			ToStatus:   input.Next.String(),
			ActorID:    input.ActorID,
			Note:       input.Note,
		}); err != nil {
			return err
		}

		switch input.Next {
		case enums.OrderStatusDelivered:
			if order.PaymentStatus != enums.PaymentStatusPaid {
				if err := repo.MarkPaid(ctx, order.ID, "", time.Now().UTC()); err != nil {
					return err
				}
				if err := s.stock.CommitLines(ctx, tx, linesFromItems(order.Items)); err != nil {
					return err
				}
			}
		case enums.OrderStatusCancelled:
			// Unsettled orders, including payment-failed ones, still
			// hold their reservation.
			if order.PaymentStatus != enums.PaymentStatusPaid {
				if err := s.stock.ReleaseLines(ctx, tx, linesFromItems(order.Items)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
	}

	updated, err := s.GetByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderCode(ctx, order.Code)
	s.logg.Info(ctx, "order status changed to "+input.Next.String())
	if s.notifier != nil {
		s.notifier.SendStatusUpdate(ctx, updated, input.Next)
	}
	return updated, nil
}

// Delete removes an order entirely. Paid or delivered orders are part of
// the financial record and cannot be deleted.
func (s *service) Delete(ctx context.Context, code string, actorID *uuid.UUID) error {
	order, err := s.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if order.PaymentStatus == enums.PaymentStatusPaid || order.Status == enums.OrderStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "paid or delivered orders cannot be deleted")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if order.PaymentStatus != enums.PaymentStatusPaid && order.Status != enums.OrderStatusCancelled {
			if err := s.stock.ReleaseLines(ctx, tx, linesFromItems(order.Items)); err != nil {
				return err
			}
		}
		return repo.DeleteOrder(ctx, order.ID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting order")
	}

	s.logg.Info(s.logg.WithOrderCode(ctx, code), "order deleted")
	return nil
}

// ConvertToCOD downgrades a stuck gateway order to cash on delivery so
// fulfillment can proceed without the provider.
func (s *service) ConvertToCOD(ctx context.Context, code string, actorID *uuid.UUID) (*models.Order, error) {
	order, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !order.PaymentMethod.GatewayRouted() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already cash on delivery")
	}
	// Failed gateway payments are the main candidates for conversion;
	// only a settled order is off limits.
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "paid orders cannot be converted")
	}

	note := "converted to cash on delivery"
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ConvertToCOD(ctx, order.ID); err != nil {
			return err
		}
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			ID:         uuid.New(),
			OrderID:    order.ID,
			FromStatus: order.Status.String(),
			ToStatus:   order.Status.String(),
			ActorID:    actorID,
			Note:       &note,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "converting order")
	}

	return s.GetByCode(ctx, code)
}

func (s *service) AddCRMLog(ctx context.Context, input CRMLogInput) error {
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown crm status")
	}
	order, err := s.GetByCode(ctx, input.Code)
	if err != nil {
		return err
	}
	log := &models.OrderCRMLog{
		ID:      uuid.New(),
		OrderID: order.ID,
		Status:  input.Status,
		AgentID: input.AgentID,
		Note:    input.Note,
	}
	if err := s.repo.CreateCRMLog(ctx, log); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording crm log")
	}
	return nil
}

func (s *service) ListCRMLogs(ctx context.Context, code string) ([]models.OrderCRMLog, error) {
	order, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.ListCRMLogs(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing crm logs")
	}
	return logs, nil
}

func linesFromItems(items []models.OrderItem) []catalog.ReservationLine {
	lines := make([]catalog.ReservationLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, catalog.ReservationLine{VariantID: item.VariantID, Qty: item.Qty})
	}
	return lines
}
