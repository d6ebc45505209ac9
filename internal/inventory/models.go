package inventory

import (
	"time"

	"github.com/google/uuid"
)

// TicketTier is the authoritative stock record for one price tier of an event.
//
// Counter invariant, enforced by every ledger mutation:
//
//	0 <= locked_quantity <= remaining <= total_quantity
//
// remaining - locked_quantity is the sellable-now quantity. The counters are
// only ever mutated inside a transaction that also mutates a Reservation or
// an Order, never on their own.
type TicketTier struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID        uuid.UUID `gorm:"type:uuid;index;not null" json:"event_id"`
	Name           string    `gorm:"not null;size:255" json:"name"`
	TotalQuantity  int       `gorm:"not null;check:total_quantity >= 0" json:"total_quantity"`
	Remaining      int       `gorm:"not null;check:remaining >= 0" json:"remaining"`
	LockedQuantity int       `gorm:"not null;default:0;check:locked_quantity >= 0" json:"locked_quantity"`
	MinPerOrder    int       `gorm:"not null;default:1" json:"min_per_order"`
	MaxPerOrder    int       `gorm:"not null;default:10" json:"max_per_order"`
	SaleStartsAt   time.Time `gorm:"not null" json:"sale_starts_at"`
	SaleEndsAt     time.Time `gorm:"not null" json:"sale_ends_at"`
	EntryType      string    `gorm:"type:varchar(50);default:'general'" json:"entry_type"`
	PriceCents     int64     `gorm:"not null;check:price_cents >= 0" json:"price_cents"`
	PriceLabel     string    `gorm:"size:100" json:"price_label"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName sets the table name for TicketTier
func (TicketTier) TableName() string {
	return "ticket_tiers"
}

// Available returns the sellable-now quantity.
func (t *TicketTier) Available() int {
	return t.Remaining - t.LockedQuantity
}

// SaleOpen reports whether the tier's sales window covers the given instant.
func (t *TicketTier) SaleOpen(now time.Time) bool {
	return !now.Before(t.SaleStartsAt) && now.Before(t.SaleEndsAt)
}

// AllowsQuantity reports whether qty satisfies the tier's per-order bounds.
func (t *TicketTier) AllowsQuantity(qty int) bool {
	if qty < t.MinPerOrder {
		return false
	}
	if t.MaxPerOrder > 0 && qty > t.MaxPerOrder {
		return false
	}
	return true
}

// CheckInvariant verifies the counter invariant after a mutation.
func (t *TicketTier) CheckInvariant() bool {
	return t.LockedQuantity >= 0 &&
		t.LockedQuantity <= t.Remaining &&
		t.Remaining <= t.TotalQuantity
}

// TierAvailability is the non-authoritative availability view served from cache.
type TierAvailability struct {
	TierID     string `json:"tier_id"`
	Name       string `json:"name"`
	Available  int    `json:"available"`
	PriceCents int64  `json:"price_cents"`
	PriceLabel string `json:"price_label"`
	SaleOpen   bool   `json:"sale_open"`
}
