package reservations

import (
	"context"
	"fmt"
	"time"

	"tixly/internal/shared/apperr"
	"tixly/pkg/logger"

	"github.com/google/uuid"
)

// Service interface defines the contract for reservation business logic
type Service interface {
	CreateReservation(ctx context.Context, customerID uuid.UUID, deviceID string, req CreateReservationRequest) (*ReservationResponse, error)
	GetReservation(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error)
	ReleaseReservation(ctx context.Context, reservationID uuid.UUID) error

	// ReleaseExpiredBatch releases up to batchSize stale holds; used by the
	// background reclaimer.
	ReleaseExpiredBatch(ctx context.Context, batchSize int) (int, error)
}

type service struct {
	repo    Repository
	holdTTL time.Duration

	// now is swappable for tests
	now func() time.Time
}

// NewService creates a new reservation service instance
func NewService(repo Repository, holdTTL time.Duration) Service {
	return &service{
		repo:    repo,
		holdTTL: holdTTL,
		now:     time.Now,
	}
}

// CreateReservation places a time-boxed hold on every requested line.
// Grants are strictly first-transaction-commits: under contention for the
// last unit exactly one concurrent attempt succeeds and the rest see
// sold_out.
func (s *service) CreateReservation(ctx context.Context, customerID uuid.UUID, deviceID string, req CreateReservationRequest) (*ReservationResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid event id")
	}

	items := make([]ReservationItem, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, item := range req.Items {
		tierID, err := uuid.Parse(item.TierID)
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "invalid tier id")
		}
		if seen[tierID] {
			return nil, apperr.New(apperr.KindValidation, "duplicate tier in cart")
		}
		seen[tierID] = true

		items = append(items, ReservationItem{
			TierID:   tierID,
			Quantity: item.Quantity,
		})
	}

	now := s.now().UTC()
	reservation := &Reservation{
		EventID:    eventID,
		CustomerID: customerID,
		DeviceID:   deviceID,
		Status:     StatusActive,
		ExpiresAt:  now.Add(s.holdTTL),
		Items:      items,
	}

	if err := s.repo.CreateWithStockLock(ctx, reservation); err != nil {
		return nil, err
	}

	resp := reservation.ToResponse(now)
	return &resp, nil
}

// GetReservation returns the hold with its live countdown, for client polling.
func (s *service) GetReservation(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	reservation, err := s.repo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	resp := reservation.ToResponse(s.now().UTC())
	return &resp, nil
}

// ReleaseReservation returns the held stock to the pool. Safe to call on an
// already-terminal reservation.
func (s *service) ReleaseReservation(ctx context.Context, reservationID uuid.UUID) error {
	_, err := s.repo.Release(ctx, reservationID)
	return err
}

func (s *service) ReleaseExpiredBatch(ctx context.Context, batchSize int) (int, error) {
	ids, err := s.repo.ListExpiredIDs(ctx, s.now().UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired reservations: %w", err)
	}

	released := 0
	for _, id := range ids {
		ok, err := s.repo.Release(ctx, id)
		if err != nil {
			// Keep sweeping; a single contended row should not stall the
			// batch. Logged so a row that fails every pass stays visible.
			logger.GetDefault().ErrorWithContext(ctx, "failed to release expired reservation", err, map[string]interface{}{
				"reservation_id": id.String(),
			})
			continue
		}
		if ok {
			released++
		}
	}
	return released, nil
}
