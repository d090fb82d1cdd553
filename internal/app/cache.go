package app

import (
	"context"
	"fmt"
	"strings"
)

const defaultListLimit = 50

func restaurantKey(id int64) string { return fmt.Sprintf("restaurant:%d", id) }

// reviewsPrefix and locationPrefix cover every page size a key was cached with.
func reviewsPrefix(id int64) string { return fmt.Sprintf("reviews:%d:", id) }

func reviewsKey(id int64, limit int) string { return fmt.Sprintf("%s%d", reviewsPrefix(id), limit) }

func locationPrefix(location string) string {
	return "location:" + strings.ToLower(strings.TrimSpace(location)) + ":"
}

func locationKey(location string, limit int) string {
	return fmt.Sprintf("%s%d", locationPrefix(location), limit)
}

func (s *IndexingService) invalidateRestaurant(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, restaurantKey(id))
	_ = s.cache.DelPrefix(ctx, reviewsPrefix(id))
}

// invalidateLocation drops the list pages the API serves for location.
func (s *IndexingService) invalidateLocation(ctx context.Context, location string) {
	if s.cache == nil || strings.TrimSpace(location) == "" {
		return
	}
	_ = s.cache.DelPrefix(ctx, locationPrefix(location))
}
