package events

import (
	"context"
	"errors"

	"tixly/internal/shared/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	GetByIDOrSlug(ctx context.Context, idOrSlug string) (*Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*Event, error) {
	var event Event

	query := r.db.WithContext(ctx).Preload("Tiers")
	if id, err := uuid.Parse(idOrSlug); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", idOrSlug)
	}

	if err := query.First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "event not found")
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).
		Preload("Tiers").
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "event not found")
		}
		return nil, err
	}
	return &event, nil
}
