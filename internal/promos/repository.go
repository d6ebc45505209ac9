package promos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrCodeNotFound = errors.New("promo code not found")

type Repository interface {
	GetByEventAndCode(ctx context.Context, eventID uuid.UUID, normalizedCode string) (*PromoCode, error)
	CountUserRedemptions(ctx context.Context, promoCodeID, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByEventAndCode(ctx context.Context, eventID uuid.UUID, normalizedCode string) (*PromoCode, error) {
	var code PromoCode
	err := r.db.WithContext(ctx).
		Preload("ApplicableTiers").
		Where("event_id = ? AND code = ?", eventID, normalizedCode).
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to load promo code: %w", err)
	}
	return &code, nil
}

func (r *repository) CountUserRedemptions(ctx context.Context, promoCodeID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PromoRedemption{}).
		Where("promo_code_id = ? AND user_id = ?", promoCodeID, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}
