package app

import (
	"context"
	"encoding/json"
	"time"

	"restaurant_catalog/internal/domain"
)

// QueryService serves catalog reads through the cache.
type QueryService struct {
	repo     domain.CatalogReader
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.CatalogReader, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetRestaurant(ctx context.Context, id int64) (domain.RestaurantView, error) {
	key := restaurantKey(id)
	var rv domain.RestaurantView
	if ok, _ := s.cache.Get(ctx, key, &rv); ok {
		return rv, nil
	}
	rv, err := s.repo.GetRestaurantView(ctx, id)
	if err != nil {
		return domain.RestaurantView{}, err
	}
	_ = s.cache.Set(ctx, key, rv, int(s.cacheTTL.Seconds()))
	return rv, nil
}

// ListByLocation returns the restaurants indexed under location, or
// ErrLocationNotIndexed when there are none.
func (s *QueryService) ListByLocation(ctx context.Context, location string, limit int) ([]domain.RestaurantView, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	key := locationKey(location, limit)
	var out []domain.RestaurantView
	if ok, _ := s.cache.Get(ctx, key, &out); ok && len(out) > 0 {
		return out, nil
	}

	rs, err := s.repo.ListByLocation(ctx, location, limit)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, domain.ErrLocationNotIndexed
	}

	// copy to avoid aliasing the repo's backing array
	out = make([]domain.RestaurantView, len(rs))
	copy(out, rs)

	// optional size guard
	if b, _ := json.Marshal(out); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

func (s *QueryService) ListReviews(ctx context.Context, id int64, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	key := reviewsKey(id, limit)
	var out []domain.Review
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	if _, err := s.repo.GetRestaurantView(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.repo.ListReviews(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}
