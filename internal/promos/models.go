package promos

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// PromoCode defines a discount's eligibility window, value and caps.
// Codes are stored normalized (upper case, trimmed) and unique per event.
type PromoCode struct {
	ID             uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID        uuid.UUID    `gorm:"type:uuid;uniqueIndex:idx_promo_event_code;not null" json:"event_id"`
	Code           string       `gorm:"uniqueIndex:idx_promo_event_code;not null;size:50" json:"code"`
	DiscountType   DiscountType `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue  int64        `gorm:"not null;check:discount_value >= 0" json:"discount_value"`
	StartsAt       time.Time    `gorm:"not null" json:"starts_at"`
	EndsAt         time.Time    `gorm:"not null" json:"ends_at"`
	Active         bool         `gorm:"default:true" json:"active"`
	MaxRedemptions int          `gorm:"default:0" json:"max_redemptions"` // 0 = unlimited
	MaxPerUser     int          `gorm:"default:0" json:"max_per_user"`    // 0 = unlimited
	RedemptionCount int         `gorm:"default:0" json:"redemption_count"`

	// Empty allow-list means the code applies to every tier of the event.
	ApplicableTiers []PromoCodeTier `json:"applicable_tiers,omitempty" gorm:"foreignKey:PromoCodeID;constraint:OnDelete:CASCADE;"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for PromoCode
func (PromoCode) TableName() string {
	return "promo_codes"
}

// PromoCodeTier is one entry of a code's tier allow-list.
type PromoCodeTier struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PromoCodeID uuid.UUID `gorm:"type:uuid;index;not null" json:"promo_code_id"`
	TierID      uuid.UUID `gorm:"type:uuid;index;not null" json:"tier_id"`
}

// TableName sets the table name for PromoCodeTier
func (PromoCodeTier) TableName() string {
	return "promo_code_tiers"
}

// PromoRedemption is an append-only fact written once per confirmed order.
// Its rows are also what the per-user cap check counts.
type PromoRedemption struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PromoCodeID    uuid.UUID `gorm:"type:uuid;index;not null" json:"promo_code_id"`
	OrderID        uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	UserID         uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	DiscountCents  int64     `gorm:"not null" json:"discount_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName sets the table name for PromoRedemption
func (PromoRedemption) TableName() string {
	return "promo_redemptions"
}

// InWindow reports whether the code's validity window covers now.
func (p *PromoCode) InWindow(now time.Time) bool {
	return !now.Before(p.StartsAt) && now.Before(p.EndsAt)
}

// AtGlobalCap reports whether the global redemption cap is exhausted.
func (p *PromoCode) AtGlobalCap() bool {
	return p.MaxRedemptions > 0 && p.RedemptionCount >= p.MaxRedemptions
}

// AppliesToTier reports whether the code covers the given tier.
func (p *PromoCode) AppliesToTier(tierID uuid.UUID) bool {
	if len(p.ApplicableTiers) == 0 {
		return true
	}
	for _, t := range p.ApplicableTiers {
		if t.TierID == tierID {
			return true
		}
	}
	return false
}

// NormalizeCode canonicalizes a user-entered code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CartItem is one candidate line the validator prices a discount against.
type CartItem struct {
	TierID        uuid.UUID `json:"tier_id"`
	Quantity      int       `json:"quantity"`
	SubtotalCents int64     `json:"subtotal_cents"`
}

// ValidationResult is the outcome of a successful promo validation.
type ValidationResult struct {
	PromoCodeID    uuid.UUID   `json:"promo_code_id"`
	Code           string      `json:"code"`
	DiscountCents  int64       `json:"discount_cents"`
	AppliedTierIDs []uuid.UUID `json:"applied_tier_ids"`
	Message        string      `json:"message"`
}

// ValidatePromoRequest is the request body for POST /promos/validate.
type ValidatePromoRequest struct {
	EventID string            `json:"event_id" binding:"required,uuid"`
	Code    string            `json:"code" binding:"required,min=1,max=50"`
	Items   []CartItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CartItemRequest mirrors CartItem with binding tags.
type CartItemRequest struct {
	TierID        string `json:"tier_id" binding:"required,uuid"`
	Quantity      int    `json:"quantity" binding:"required,min=1"`
	SubtotalCents int64  `json:"subtotal_cents" binding:"required,min=0"`
}
