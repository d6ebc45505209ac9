package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tixly/internal/inventory"
	"tixly/internal/shared/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// CreateWithStockLock validates and locks stock for every requested
	// line inside one transaction, then writes the reservation. All-or-
	// nothing across the full cart.
	CreateWithStockLock(ctx context.Context, reservation *Reservation) error

	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// Release returns held stock to the pool and marks the reservation
	// expired. Returns false without error when the reservation was
	// already terminal.
	Release(ctx context.Context, id uuid.UUID) (bool, error)

	// ListExpiredIDs returns up to limit active reservations whose expiry
	// has passed, oldest first.
	ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db     *gorm.DB
	ledger *inventory.Ledger
}

func NewRepository(db *gorm.DB, ledger *inventory.Ledger) Repository {
	return &repository{db: db, ledger: ledger}
}

func (r *repository) CreateWithStockLock(ctx context.Context, reservation *Reservation) error {
	now := time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tierIDs := make([]uuid.UUID, 0, len(reservation.Items))
		for _, item := range reservation.Items {
			tierIDs = append(tierIDs, item.TierID)
		}

		tiers, err := r.ledger.GetManyForUpdate(tx, tierIDs)
		if err != nil {
			return err
		}

		for i := range reservation.Items {
			item := &reservation.Items[i]
			tier := tiers[item.TierID]

			if tier.EventID != reservation.EventID {
				return apperr.New(apperr.KindValidation, "ticket tier does not belong to this event")
			}
			if !tier.SaleOpen(now) {
				return apperr.Newf(apperr.KindValidation, "sales window for %s is closed", tier.Name)
			}
			if !tier.AllowsQuantity(item.Quantity) {
				return apperr.Newf(apperr.KindValidation,
					"%s allows between %d and %d tickets per order", tier.Name, tier.MinPerOrder, tier.MaxPerOrder)
			}

			if err := r.ledger.Hold(tx, tier, item.Quantity); err != nil {
				return err
			}

			// Snapshot pricing from the tier at hold time.
			item.TierName = tier.Name
			item.UnitPriceCents = tier.PriceCents
			item.PriceLabel = tier.PriceLabel
			item.SubtotalCents = tier.PriceCents * int64(item.Quantity)
		}

		if err := tx.Create(reservation).Error; err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	var reservation Reservation
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "reservation not found")
		}
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	return &reservation, nil
}

func (r *repository) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	released := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservation Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Where("id = ?", id).
			First(&reservation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "reservation not found")
			}
			return fmt.Errorf("failed to lock reservation: %w", err)
		}

		// Terminal states are final; releasing twice is a no-op.
		if !reservation.IsActive() {
			return nil
		}

		for _, item := range reservation.Items {
			tier, err := r.ledger.GetForUpdate(tx, item.TierID)
			if err != nil {
				return err
			}
			if err := r.ledger.ReleaseHold(tx, tier, item.Quantity); err != nil {
				return err
			}
		}

		err = tx.Model(&Reservation{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     StatusExpired,
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to expire reservation: %w", err)
		}

		released = true
		return nil
	})

	return released, err
}

func (r *repository) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("status = ? AND expires_at < ?", StatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}
	return ids, nil
}
