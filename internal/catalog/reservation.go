package catalog

import (
	"context"
	"fmt"

	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReservationLine is one variant/quantity pair a checkout wants to hold.
type ReservationLine struct {
	VariantID uuid.UUID
	Qty       int
}

// ReservationResult reports the per-line outcome of a reservation attempt.
type ReservationResult struct {
	VariantID uuid.UUID `json:"variant_id"`
	Qty       int       `json:"qty"`
	Reserved  bool      `json:"reserved"`
	Reason    string    `json:"reason,omitempty"`
}

// Reserver holds and releases stock for a set of order lines.
type Reserver interface {
	ReserveLines(ctx context.Context, tx *gorm.DB, lines []ReservationLine) ([]ReservationResult, error)
	ReleaseLines(ctx context.Context, tx *gorm.DB, lines []ReservationLine) error
	CommitLines(ctx context.Context, tx *gorm.DB, lines []ReservationLine) error
}

type reserver struct {
	repo Repository
}

// NewReserver builds the stock reservation service.
func NewReserver(repo Repository) (Reserver, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	return &reserver{repo: repo}, nil
}

// ReserveLines attempts every line inside the caller's transaction. The
// first line that cannot be held fails the whole call; the surrounding
// rollback undoes the lines already decremented, so the hold is
// all-or-nothing.
func (s *reserver) ReserveLines(ctx context.Context, tx *gorm.DB, lines []ReservationLine) ([]ReservationResult, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no lines to reserve")
	}

	repo := s.repo.WithTx(tx)
	results := make([]ReservationResult, 0, len(lines))
	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}
		ok, err := repo.Reserve(ctx, line.VariantID, line.Qty)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserving stock")
		}
		result := ReservationResult{VariantID: line.VariantID, Qty: line.Qty, Reserved: ok}
		if !ok {
			result.Reason = "insufficient_stock"
			results = append(results, result)
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(results)
		}
		results = append(results, result)
	}
	return results, nil
}

// ReleaseLines puts reserved quantities back. Used by the compensation
// path after a failed gateway initiation and by order cancellation.
func (s *reserver) ReleaseLines(ctx context.Context, tx *gorm.DB, lines []ReservationLine) error {
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		ok, err := repo.Release(ctx, line.VariantID, line.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "reserved quantity underflow")
		}
	}
	return nil
}

// CommitLines burns the reservation once payment settles or delivery
// completes.
func (s *reserver) CommitLines(ctx context.Context, tx *gorm.DB, lines []ReservationLine) error {
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		ok, err := repo.CommitReservation(ctx, line.VariantID, line.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "committing reservation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "reserved quantity underflow")
		}
	}
	return nil
}
