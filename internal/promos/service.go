package promos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"tixly/internal/shared/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service interface {
	Validate(ctx context.Context, eventID uuid.UUID, code string, userID uuid.UUID, items []CartItem) (*ValidationResult, error)
}

type service struct {
	repo Repository

	// now is swappable for tests
	now func() time.Time
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		now:  time.Now,
	}
}

// Validate checks a code's eligibility for the candidate cart and computes
// the discount it would grant. Validation never mutates anything: the
// redemption is only recorded when the order actually confirms.
func (s *service) Validate(ctx context.Context, eventID uuid.UUID, code string, userID uuid.UUID, items []CartItem) (*ValidationResult, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, apperr.New(apperr.KindPromoIneligible, "promo code is empty")
	}

	promo, err := s.repo.GetByEventAndCode(ctx, eventID, normalized)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, apperr.New(apperr.KindPromoIneligible, "promo code not found")
		}
		return nil, fmt.Errorf("promo lookup failed: %w", err)
	}

	if !promo.Active {
		return nil, apperr.New(apperr.KindPromoIneligible, "promo code is no longer active")
	}
	if !promo.InWindow(s.now().UTC()) {
		return nil, apperr.New(apperr.KindPromoIneligible, "promo code is outside its validity window")
	}
	if promo.AtGlobalCap() {
		return nil, apperr.New(apperr.KindPromoIneligible, "promo code has been fully redeemed")
	}

	if promo.MaxPerUser > 0 {
		used, err := s.repo.CountUserRedemptions(ctx, promo.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("redemption count failed: %w", err)
		}
		if used >= int64(promo.MaxPerUser) {
			return nil, apperr.New(apperr.KindPromoIneligible, "promo code already used the maximum number of times")
		}
	}

	// Filter the cart down to the lines the code covers.
	var applicableSubtotal int64
	var appliedTierIDs []uuid.UUID
	for _, item := range items {
		if promo.AppliesToTier(item.TierID) {
			applicableSubtotal += item.SubtotalCents
			appliedTierIDs = append(appliedTierIDs, item.TierID)
		}
	}
	if len(appliedTierIDs) == 0 {
		return nil, apperr.New(apperr.KindPromoIneligible, "promo code does not apply to any item in the cart")
	}

	discount := ComputeDiscount(promo.DiscountType, promo.DiscountValue, applicableSubtotal)

	return &ValidationResult{
		PromoCodeID:    promo.ID,
		Code:           promo.Code,
		DiscountCents:  discount,
		AppliedTierIDs: appliedTierIDs,
		Message:        fmt.Sprintf("Code %s applied: %s off", promo.Code, formatCents(discount)),
	}, nil
}

// ComputeDiscount prices a discount against the applicable subtotal.
// Percentage discounts round to the nearest cent; fixed discounts are
// capped at the subtotal so a total can never go negative.
func ComputeDiscount(discountType DiscountType, value, applicableSubtotalCents int64) int64 {
	switch discountType {
	case DiscountPercentage:
		return int64(math.Round(float64(applicableSubtotalCents) * float64(value) / 100.0))
	case DiscountFixed:
		if value > applicableSubtotalCents {
			return applicableSubtotalCents
		}
		return value
	default:
		return 0
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// RecordRedemption writes the append-only redemption fact and bumps the
// code's counter, inside the caller's (order confirmation) transaction. The
// counter increment is conditional on the global cap so two racing
// confirmations cannot both take the last redemption.
func RecordRedemption(tx *gorm.DB, promoCodeID, orderID, userID uuid.UUID, discountCents int64) error {
	result := tx.Model(&PromoCode{}).
		Where("id = ? AND (max_redemptions = 0 OR redemption_count < max_redemptions)", promoCodeID).
		Update("redemption_count", gorm.Expr("redemption_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment redemption count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.New(apperr.KindPromoIneligible, "promo code has been fully redeemed")
	}

	redemption := &PromoRedemption{
		PromoCodeID:   promoCodeID,
		OrderID:       orderID,
		UserID:        userID,
		DiscountCents: discountCents,
	}
	if err := tx.Create(redemption).Error; err != nil {
		return fmt.Errorf("failed to record promo redemption: %w", err)
	}
	return nil
}
