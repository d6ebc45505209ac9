package events

import (
	"context"
	"fmt"
	"time"

	"tixly/pkg/cache"
)

// Service exposes the catalog read surface this core consumes and the
// availability view it serves to clients.
type Service interface {
	GetEvent(ctx context.Context, idOrSlug string) (*Event, error)
	GetAvailability(ctx context.Context, idOrSlug string) (*EventResponse, error)
	InvalidateAvailability(ctx context.Context, eventID string)
}

type service struct {
	repo     Repository
	cache    cache.Service
	cacheTTL time.Duration
}

func NewService(repo Repository, cacheService cache.Service, cacheTTL time.Duration) Service {
	return &service{
		repo:     repo,
		cache:    cacheService,
		cacheTTL: cacheTTL,
	}
}

func (s *service) GetEvent(ctx context.Context, idOrSlug string) (*Event, error) {
	return s.repo.GetByIDOrSlug(ctx, idOrSlug)
}

// GetAvailability serves the display-only availability view through the
// cache-aside pattern. Stale counts are acceptable here; mutations always
// re-check counters inside their own transaction.
func (s *service) GetAvailability(ctx context.Context, idOrSlug string) (*EventResponse, error) {
	key := availabilityKey(idOrSlug)

	if s.cache != nil {
		var cached EventResponse
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	event, err := s.repo.GetByIDOrSlug(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}

	resp := event.ToResponse(time.Now().UTC())
	if s.cache != nil {
		// Cache under both id and slug so either lookup hits.
		_ = s.cache.Set(ctx, availabilityKey(resp.ID), resp, s.cacheTTL)
		_ = s.cache.Set(ctx, availabilityKey(resp.Slug), resp, s.cacheTTL)
	}
	return &resp, nil
}

// InvalidateAvailability drops both cached copies of the event's view. The
// cache writes under id and slug, so both keys have to go or the slug lookup
// keeps serving the stale count for the full TTL.
func (s *service) InvalidateAvailability(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, availabilityKey(eventID))

	if event, err := s.repo.GetByIDOrSlug(ctx, eventID); err == nil {
		_ = s.cache.Delete(ctx, availabilityKey(event.ID.String()))
		_ = s.cache.Delete(ctx, availabilityKey(event.Slug))
	}
}

func availabilityKey(idOrSlug string) string {
	return fmt.Sprintf("tixly:availability:%s", idOrSlug)
}
