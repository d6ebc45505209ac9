package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tixly/internal/credentials"
	"tixly/internal/inventory"
	"tixly/internal/promos"
	"tixly/internal/reservations"
	"tixly/internal/shared/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdempotencyKey maps a caller-supplied key onto the order it produced, so
// retried direct purchases resolve to the stored result instead of a second
// sale. Reservation-backed orders get the same property from their
// deterministic ids.
type IdempotencyKey struct {
	Key        string    `gorm:"primaryKey;size:100"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt  time.Time
}

// TableName sets the table name for IdempotencyKey
func (IdempotencyKey) TableName() string {
	return "order_idempotency_keys"
}

// CreateParams carries everything the transactional create paths need.
type CreateParams struct {
	CustomerID     uuid.UUID
	EventID        uuid.UUID
	ReservationID  *uuid.UUID
	DirectItems    []DirectItem
	PromoCodeID    *uuid.UUID
	DiscountCents  int64
	IdempotencyKey string
	IsRSVP         bool
}

// DirectItem is one requested line on the direct (no-reservation) path.
type DirectItem struct {
	TierID   uuid.UUID
	Quantity int
}

// PaymentMeta is the settlement data attached when an order confirms.
type PaymentMeta struct {
	PaymentID string
	Mode      string
}

type Repository interface {
	// Creation paths. The bool reports whether a new order was written;
	// false means an existing order was returned idempotently.
	CreateFromReservation(ctx context.Context, params CreateParams) (*Order, bool, error)
	CreateDirect(ctx context.Context, params CreateParams) (*Order, bool, error)
	CreateRSVP(ctx context.Context, params CreateParams) (*Order, bool, error)

	// ConfirmPayment settles a pending order. The bool reports whether
	// this call performed the transition; false means it was already
	// confirmed and the stored state is returned unchanged.
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, meta PaymentMeta) (*Order, bool, error)

	AttachExternalRef(ctx context.Context, orderID uuid.UUID, externalRef string) error

	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByReservationID(ctx context.Context, reservationID uuid.UUID) (*Order, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*Order, error)

	// Reclaimer support.
	ListStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	ExpireStale(ctx context.Context, orderID uuid.UUID, reason string) (bool, error)
}

type repository struct {
	db     *gorm.DB
	ledger *inventory.Ledger
	signer *credentials.Signer
}

func NewRepository(db *gorm.DB, ledger *inventory.Ledger, signer *credentials.Signer) Repository {
	return &repository{db: db, ledger: ledger, signer: signer}
}

func (r *repository) CreateFromReservation(ctx context.Context, params CreateParams) (*Order, bool, error) {
	if params.ReservationID == nil {
		return nil, false, apperr.New(apperr.KindValidation, "reservation id is required")
	}
	orderID := DeriveOrderID(*params.ReservationID)

	var order *Order
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Retries and duplicate webhooks land on the same deterministic
		// id, so an existing row is an idempotent success.
		if existing, err := getByIDTx(tx, orderID); err == nil {
			order = existing
			return nil
		} else if !apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}

		var reservation reservations.Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Where("id = ?", *params.ReservationID).
			First(&reservation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "reservation not found")
			}
			return fmt.Errorf("failed to lock reservation: %w", err)
		}

		// A converted reservation means a concurrent duplicate won the
		// race while we waited on the row lock; its order is ours too.
		if reservation.Status == reservations.StatusConverted {
			existing, err := getByIDTx(tx, orderID)
			if err != nil {
				return err
			}
			order = existing
			return nil
		}

		// An expired hold is gone for good; holds and orders are
		// independent entities once the TTL has passed. A hold whose TTL
		// lapsed but that the sweeper has not reached yet counts as
		// expired too.
		if !reservation.IsActive() || reservation.IsExpired(time.Now().UTC()) {
			return apperr.New(apperr.KindNotFound, "reservation is no longer active")
		}
		if reservation.CustomerID != params.CustomerID {
			return apperr.New(apperr.KindUnauthorized, "reservation belongs to another customer")
		}

		items := make([]OrderItem, 0, len(reservation.Items))
		var subtotal int64
		tierIDs := make([]uuid.UUID, 0, len(reservation.Items))
		for _, ri := range reservation.Items {
			items = append(items, OrderItem{
				TierID:         ri.TierID,
				TierName:       ri.TierName,
				Quantity:       ri.Quantity,
				UnitPriceCents: ri.UnitPriceCents,
				PriceLabel:     ri.PriceLabel,
				SubtotalCents:  ri.SubtotalCents,
			})
			subtotal += ri.SubtotalCents
			tierIDs = append(tierIDs, ri.TierID)
		}

		// The hold's claim is spent now: both remaining and
		// locked_quantity drop by the held quantity.
		tiers, err := r.ledger.GetManyForUpdate(tx, tierIDs)
		if err != nil {
			return err
		}
		for i := range items {
			tier := tiers[items[i].TierID]
			items[i].EntryType = tier.EntryType
			if err := r.ledger.CommitHold(tx, tier, items[i].Quantity); err != nil {
				return err
			}
		}

		newOrder, err := r.writeOrder(tx, orderID, params, reservation.EventID, items, subtotal)
		if err != nil {
			return err
		}

		err = tx.Model(&reservations.Reservation{}).
			Where("id = ?", reservation.ID).
			Updates(map[string]interface{}{
				"status":     reservations.StatusConverted,
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to convert reservation: %w", err)
		}

		order = newOrder
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, created, nil
}

func (r *repository) CreateDirect(ctx context.Context, params CreateParams) (*Order, bool, error) {
	if len(params.DirectItems) == 0 {
		return nil, false, apperr.New(apperr.KindValidation, "order has no items")
	}

	var order *Order
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if params.IdempotencyKey != "" {
			existing, err := r.lookupIdempotencyKey(tx, params.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				order = existing
				return nil
			}
		}

		now := time.Now().UTC()
		tierIDs := make([]uuid.UUID, 0, len(params.DirectItems))
		for _, item := range params.DirectItems {
			tierIDs = append(tierIDs, item.TierID)
		}

		tiers, err := r.ledger.GetManyForUpdate(tx, tierIDs)
		if err != nil {
			return err
		}

		items := make([]OrderItem, 0, len(params.DirectItems))
		var subtotal int64
		for _, requested := range params.DirectItems {
			tier := tiers[requested.TierID]

			if tier.EventID != params.EventID {
				return apperr.New(apperr.KindValidation, "ticket tier does not belong to this event")
			}
			if !tier.SaleOpen(now) {
				return apperr.Newf(apperr.KindValidation, "sales window for %s is closed", tier.Name)
			}
			if !tier.AllowsQuantity(requested.Quantity) {
				return apperr.Newf(apperr.KindValidation,
					"%s allows between %d and %d tickets per order", tier.Name, tier.MinPerOrder, tier.MaxPerOrder)
			}

			// No hold pre-claimed this stock, so availability is
			// checked here, at adjustment time.
			if err := r.ledger.Deduct(tx, tier, requested.Quantity); err != nil {
				return err
			}

			lineSubtotal := tier.PriceCents * int64(requested.Quantity)
			items = append(items, OrderItem{
				TierID:         tier.ID,
				TierName:       tier.Name,
				Quantity:       requested.Quantity,
				UnitPriceCents: tier.PriceCents,
				PriceLabel:     tier.PriceLabel,
				SubtotalCents:  lineSubtotal,
				EntryType:      tier.EntryType,
			})
			subtotal += lineSubtotal
		}

		newOrder, err := r.writeOrder(tx, uuid.New(), params, params.EventID, items, subtotal)
		if err != nil {
			return err
		}

		if params.IdempotencyKey != "" {
			key := &IdempotencyKey{
				Key:        params.IdempotencyKey,
				CustomerID: params.CustomerID,
				OrderID:    newOrder.ID,
			}
			if err := tx.Create(key).Error; err != nil {
				return fmt.Errorf("failed to record idempotency key: %w", err)
			}
		}

		order = newOrder
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, created, nil
}

func (r *repository) CreateRSVP(ctx context.Context, params CreateParams) (*Order, bool, error) {
	if len(params.DirectItems) == 0 {
		return nil, false, apperr.New(apperr.KindValidation, "rsvp has no items")
	}

	var order *Order
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if params.IdempotencyKey != "" {
			existing, err := r.lookupIdempotencyKey(tx, params.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				order = existing
				return nil
			}
		}

		// RSVPs skip inventory deduction entirely; capacity for RSVP
		// events is not gated here.
		items := make([]OrderItem, 0, len(params.DirectItems))
		for _, requested := range params.DirectItems {
			var tier inventory.TicketTier
			err := tx.Where("id = ?", requested.TierID).First(&tier).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.New(apperr.KindNotFound, "ticket tier not found")
				}
				return fmt.Errorf("failed to load tier: %w", err)
			}
			if tier.EventID != params.EventID {
				return apperr.New(apperr.KindValidation, "ticket tier does not belong to this event")
			}

			items = append(items, OrderItem{
				TierID:     tier.ID,
				TierName:   tier.Name,
				Quantity:   requested.Quantity,
				PriceLabel: "RSVP",
				EntryType:  tier.EntryType,
			})
		}

		newOrder, err := r.writeOrder(tx, uuid.New(), params, params.EventID, items, 0)
		if err != nil {
			return err
		}

		if params.IdempotencyKey != "" {
			key := &IdempotencyKey{
				Key:        params.IdempotencyKey,
				CustomerID: params.CustomerID,
				OrderID:    newOrder.ID,
			}
			if err := tx.Create(key).Error; err != nil {
				return fmt.Errorf("failed to record idempotency key: %w", err)
			}
		}

		order = newOrder
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, created, nil
}

// writeOrder assembles and persists the order row. Free orders self-confirm
// at creation: credentials are minted and any promo redemption recorded in
// the same transaction.
func (r *repository) writeOrder(tx *gorm.DB, orderID uuid.UUID, params CreateParams, eventID uuid.UUID, items []OrderItem, subtotal int64) (*Order, error) {
	discount := params.DiscountCents
	if discount > subtotal {
		discount = subtotal
	}

	order := &Order{
		ID:            orderID,
		EventID:       eventID,
		CustomerID:    params.CustomerID,
		ReservationID: params.ReservationID,
		IsRSVP:        params.IsRSVP,
		SubtotalCents: subtotal,
		PromoCodeID:   params.PromoCodeID,
		DiscountCents: discount,
		TotalCents:    subtotal - discount,
		Status:        StatusPendingPayment,
		Items:         items,
	}

	if order.IsFree() {
		now := time.Now().UTC()
		order.Status = StatusConfirmed
		order.ConfirmedAt = &now
		order.Credentials = r.mintCredentials(order)
	}

	if err := tx.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if order.IsConfirmed() && order.PromoCodeID != nil {
		if err := promos.RecordRedemption(tx, *order.PromoCodeID, order.ID, order.CustomerID, order.DiscountCents); err != nil {
			return nil, err
		}
	}

	return order, nil
}

func (r *repository) ConfirmPayment(ctx context.Context, orderID uuid.UUID, meta PaymentMeta) (*Order, bool, error) {
	var order *Order
	confirmed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Preload("Credentials").
			Where("id = ?", orderID).
			First(&stored).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "order not found")
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}

		// Duplicate settlement notifications are idempotent successes:
		// the stored state goes back unchanged and no second batch of
		// credentials is minted.
		if stored.IsConfirmed() {
			order = &stored
			return nil
		}
		if !stored.Status.CanConfirm() {
			return apperr.Newf(apperr.KindValidation, "order is %s and cannot be confirmed", stored.Status)
		}

		now := time.Now().UTC()
		stored.Status = StatusConfirmed
		stored.ConfirmedAt = &now
		stored.PaymentID = meta.PaymentID
		stored.PaymentMode = meta.Mode

		err = tx.Model(&Order{}).
			Where("id = ?", stored.ID).
			Updates(map[string]interface{}{
				"status":       StatusConfirmed,
				"confirmed_at": now,
				"payment_id":   meta.PaymentID,
				"payment_mode": meta.Mode,
				"updated_at":   now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to confirm order: %w", err)
		}

		minted := r.mintCredentials(&stored)
		for i := range minted {
			if err := tx.Create(&minted[i]).Error; err != nil {
				return fmt.Errorf("failed to persist credential: %w", err)
			}
		}
		stored.Credentials = minted

		if stored.PromoCodeID != nil {
			if err := promos.RecordRedemption(tx, *stored.PromoCodeID, stored.ID, stored.CustomerID, stored.DiscountCents); err != nil {
				return err
			}
		}

		order = &stored
		confirmed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, confirmed, nil
}

// mintCredentials issues one signed payload per ticket line, covering the
// line's quantity as a unit.
func (r *repository) mintCredentials(order *Order) []IssuedCredential {
	minted := make([]IssuedCredential, 0, len(order.Items))
	for _, item := range order.Items {
		payload := r.signer.Issue(
			order.ID.String(),
			order.EventID.String(),
			item.TierID.String(),
			item.TierName,
			order.CustomerID.String(),
			item.Quantity,
			item.EntryType,
			order.IsRSVP,
		)
		minted = append(minted, IssuedCredential{
			OrderID:   order.ID,
			EventID:   order.EventID,
			TicketID:  item.TierID,
			TierName:  item.TierName,
			OwnerID:   order.CustomerID,
			Quantity:  item.Quantity,
			EntryType: item.EntryType,
			IsRSVP:    order.IsRSVP,
			IssuedAt:  payload.IssuedAt,
			Version:   payload.Version,
			Signature: payload.Signature,
		})
	}
	return minted
}

func (r *repository) AttachExternalRef(ctx context.Context, orderID uuid.UUID, externalRef string) error {
	err := r.db.WithContext(ctx).
		Model(&Order{}).
		Where("id = ?", orderID).
		Update("external_order_ref", externalRef).Error
	if err != nil {
		return fmt.Errorf("failed to attach external order ref: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getByIDTx(r.db.WithContext(ctx), id)
}

func getByIDTx(tx *gorm.DB, id uuid.UUID) (*Order, error) {
	var order Order
	err := tx.
		Preload("Items").
		Preload("Credentials").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func (r *repository) GetByReservationID(ctx context.Context, reservationID uuid.UUID) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Credentials").
		Where("reservation_id = ?", reservationID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "no order for reservation")
		}
		return nil, fmt.Errorf("failed to load order by reservation: %w", err)
	}
	return &order, nil
}

func (r *repository) GetByExternalRef(ctx context.Context, externalRef string) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Credentials").
		Where("external_order_ref = ?", externalRef).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "no order for payment reference")
		}
		return nil, fmt.Errorf("failed to load order by external ref: %w", err)
	}
	return &order, nil
}

func (r *repository) ListStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&Order{}).
		Where("status = ? AND created_at < ?", StatusPendingPayment, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	return ids, nil
}

// ExpireStale moves a stale pending order to expired and restocks the sold
// units. Both creation paths deduct remaining up front, so expiry restores
// it; without this, abandoned unpaid orders would leak inventory.
func (r *repository) ExpireStale(ctx context.Context, orderID uuid.UUID, reason string) (bool, error) {
	expired := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Where("id = ?", orderID).
			First(&order).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "order not found")
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}

		if order.Status != StatusPendingPayment {
			return nil
		}

		err = tx.Model(&Order{}).
			Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"status":        StatusExpired,
				"expiry_reason": reason,
				"updated_at":    time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to expire order: %w", err)
		}

		for _, item := range order.Items {
			tier, err := r.ledger.GetForUpdate(tx, item.TierID)
			if err != nil {
				return err
			}
			if err := r.ledger.Restock(tx, tier, item.Quantity); err != nil {
				return err
			}
		}

		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

func (r *repository) lookupIdempotencyKey(tx *gorm.DB, key string) (*Order, error) {
	var stored IdempotencyKey
	err := tx.Where("key = ?", key).First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return getByIDTx(tx, stored.OrderID)
}
