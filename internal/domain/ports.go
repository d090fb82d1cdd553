package domain

import "context"

// Adapter normalizes one provider's search/detail/review calls.
type Adapter interface {
	Source() string
	Configured() bool
	SearchArea(ctx context.Context, location, category string, limit, offset int) ([]Listing, error)
	SearchByName(ctx context.Context, name, location string, limit int) ([]Listing, error)
	GetDetail(ctx context.Context, providerID string) (Listing, error)
	GetReviews(ctx context.Context, providerID string) ([]Review, error)
}

type CatalogStore interface {
	// Write paths
	CreateRestaurant(ctx context.Context, b ListingBundle) (int64, error)
	MergeIntoRestaurant(ctx context.Context, id int64, b ListingBundle) error

	// Match paths
	FindMatchCandidates(ctx context.Context, area string, l Listing) ([]Restaurant, error)
	FindByExternalID(ctx context.Context, source, providerID string) (Restaurant, error)
	// LockMatching serializes "find candidates -> score -> write" across
	// every writer of the catalog. The returned func releases the lock.
	LockMatching(ctx context.Context) (func(), error)

	// Read paths
	GetRestaurant(ctx context.Context, id int64) (Restaurant, error)
	GetExternalIDs(ctx context.Context, id int64) ([]ExternalID, error)
	GetRatings(ctx context.Context, id int64) ([]Rating, error)
}

type CatalogReader interface {
	GetRestaurantView(ctx context.Context, id int64) (RestaurantView, error)
	ListByLocation(ctx context.Context, location string, limit int) ([]RestaurantView, error)
	ListReviews(ctx context.Context, id int64, limit int) ([]Review, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	// DelPrefix drops every key starting with prefix.
	DelPrefix(ctx context.Context, prefix string) error
}

// RequestCounter backs per-provider request quotas.
type RequestCounter interface {
	Incr(ctx context.Context, source string) (int64, error)
}
