package inventory

import (
	"errors"
	"fmt"
	"sort"

	"tixly/internal/shared/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger exposes atomic read-modify-write access to tier counters. Every
// method takes the caller's open transaction: the ledger holds no locks of
// its own and relies entirely on the host transaction's row locks, so a
// counter mutation commits or aborts together with the Reservation or Order
// that caused it.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// GetForUpdate loads a tier under a row lock inside tx.
func (l *Ledger) GetForUpdate(tx *gorm.DB, tierID uuid.UUID) (*TicketTier, error) {
	var tier TicketTier
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", tierID).
		First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "ticket tier not found")
		}
		return nil, fmt.Errorf("failed to lock tier %s: %w", tierID, err)
	}
	return &tier, nil
}

// GetManyForUpdate loads several tiers under row locks, always in ascending
// id order so concurrent multi-tier carts cannot deadlock each other.
func (l *Ledger) GetManyForUpdate(tx *gorm.DB, tierIDs []uuid.UUID) (map[uuid.UUID]*TicketTier, error) {
	sorted := make([]uuid.UUID, len(tierIDs))
	copy(sorted, tierIDs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	tiers := make(map[uuid.UUID]*TicketTier, len(sorted))
	for _, id := range sorted {
		tier, err := l.GetForUpdate(tx, id)
		if err != nil {
			return nil, err
		}
		tiers[id] = tier
	}
	return tiers, nil
}

// Hold locks qty units of the tier for a reservation. The tier must already
// be row-locked in tx (GetForUpdate).
func (l *Ledger) Hold(tx *gorm.DB, tier *TicketTier, qty int) error {
	if available := tier.Available(); qty > available {
		return apperr.SoldOut(tier.Name, available)
	}

	tier.LockedQuantity += qty
	if !tier.CheckInvariant() {
		return fmt.Errorf("tier %s counter invariant violated after hold", tier.ID)
	}
	return l.saveCounters(tx, tier)
}

// ReleaseHold returns qty held units to the sellable pool, floored at zero
// so a double release can never drive the counter negative.
func (l *Ledger) ReleaseHold(tx *gorm.DB, tier *TicketTier, qty int) error {
	tier.LockedQuantity -= qty
	if tier.LockedQuantity < 0 {
		tier.LockedQuantity = 0
	}
	return l.saveCounters(tx, tier)
}

// CommitHold spends a reservation's claim: the held units become sold, so
// both remaining and locked_quantity drop by qty.
func (l *Ledger) CommitHold(tx *gorm.DB, tier *TicketTier, qty int) error {
	tier.Remaining -= qty
	tier.LockedQuantity -= qty
	if tier.LockedQuantity < 0 {
		tier.LockedQuantity = 0
	}
	if tier.Remaining < 0 || !tier.CheckInvariant() {
		return fmt.Errorf("tier %s counter invariant violated after commit", tier.ID)
	}
	return l.saveCounters(tx, tier)
}

// Deduct sells qty units directly, without a backing reservation. The
// availability check happens here, at adjustment time, because no hold has
// pre-claimed the stock.
func (l *Ledger) Deduct(tx *gorm.DB, tier *TicketTier, qty int) error {
	if available := tier.Available(); qty > available {
		return apperr.SoldOut(tier.Name, available)
	}

	tier.Remaining -= qty
	if !tier.CheckInvariant() {
		return fmt.Errorf("tier %s counter invariant violated after deduct", tier.ID)
	}
	return l.saveCounters(tx, tier)
}

// Restock returns qty sold units to remaining, capped at total_quantity.
// Used when a stale direct order is expired by the reclaimer.
func (l *Ledger) Restock(tx *gorm.DB, tier *TicketTier, qty int) error {
	tier.Remaining += qty
	if tier.Remaining > tier.TotalQuantity {
		tier.Remaining = tier.TotalQuantity
	}
	return l.saveCounters(tx, tier)
}

func (l *Ledger) saveCounters(tx *gorm.DB, tier *TicketTier) error {
	err := tx.Model(&TicketTier{}).
		Where("id = ?", tier.ID).
		Updates(map[string]interface{}{
			"remaining":       tier.Remaining,
			"locked_quantity": tier.LockedQuantity,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update tier counters: %w", err)
	}
	return nil
}
