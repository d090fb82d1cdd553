package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"restaurant_catalog/internal/adapters/observability"
	"restaurant_catalog/internal/domain"
	"restaurant_catalog/internal/matcher"
)

type IndexingConfig struct {
	PageSize   int // listings requested per SearchArea call
	MaxPages   int // SearchArea calls per adapter and area
	ProbeLimit int // SearchByName results scored per enrichment probe
}

func DefaultIndexingConfig() IndexingConfig {
	return IndexingConfig{PageSize: 50, MaxPages: 1, ProbeLimit: 5}
}

// IndexingService turns provider listings into canonical restaurants.
//
// Adapters are iterated in registration order and listings in the order each
// adapter returns them; on merges the last writer wins per field.
type IndexingService struct {
	adapters []domain.Adapter
	store    domain.CatalogStore
	matcher  *matcher.Matcher
	cache    domain.Cache
	cfg      IndexingConfig

	// in-process half of the match lock; the store holds the cross-process half
	matchSem *semaphore.Weighted
}

func NewIndexingService(adapters []domain.Adapter, store domain.CatalogStore, m *matcher.Matcher, cache domain.Cache, cfg IndexingConfig) *IndexingService {
	def := DefaultIndexingConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.ProbeLimit <= 0 {
		cfg.ProbeLimit = def.ProbeLimit
	}
	return &IndexingService{
		adapters: adapters,
		store:    store,
		matcher:  m,
		cache:    cache,
		cfg:      cfg,
		matchSem: semaphore.NewWeighted(1),
	}
}

// Configured returns the adapters that have credentials, in iteration order.
func (s *IndexingService) Configured() []domain.Adapter {
	out := make([]domain.Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		if a.Configured() {
			out = append(out, a)
		}
	}
	return out
}

// Adapter looks up a registered adapter by source name, configured or not.
func (s *IndexingService) Adapter(source string) (domain.Adapter, bool) {
	for _, a := range s.adapters {
		if a.Source() == source {
			return a, true
		}
	}
	return nil, false
}

// IndexArea searches every configured adapter for location and creates or
// merges a canonical restaurant per listing. Any adapter or store error
// aborts the run.
func (s *IndexingService) IndexArea(ctx context.Context, location, category string) (domain.IndexStats, error) {
	var stats domain.IndexStats
	adapters := s.Configured()
	if len(adapters) == 0 {
		return stats, domain.ErrNoAdaptersConfigured
	}

	for _, a := range adapters {
		for page := 0; page < s.cfg.MaxPages; page++ {
			listings, err := a.SearchArea(ctx, location, category, s.cfg.PageSize, page*s.cfg.PageSize)
			if err != nil {
				return stats, fmt.Errorf("%s search %q: %w", a.Source(), location, err)
			}
			for _, l := range listings {
				out, err := s.indexListing(ctx, a, l, location)
				if err != nil {
					return stats, err
				}
				stats.Total++
				if out.created {
					stats.Created++
				} else {
					stats.Merged++
				}
			}
			if len(listings) < s.cfg.PageSize {
				break
			}
		}
	}

	s.invalidateLocation(ctx, location)
	log.Info().
		Str("location", location).
		Str("category", category).
		Int("total", stats.Total).
		Int("created", stats.Created).
		Int("merged", stats.Merged).
		Msg("area indexed")
	return stats, nil
}

type indexOutcome struct {
	id      int64
	created bool
	score   int
}

// indexListing fetches detail and reviews for l outside the match lock,
// then resolves it against the catalog under the lock.
func (s *IndexingService) indexListing(ctx context.Context, a domain.Adapter, l domain.Listing, location string) (indexOutcome, error) {
	b, err := s.fetchBundle(ctx, a, l, location)
	if err != nil {
		return indexOutcome{}, err
	}
	return s.resolve(ctx, b)
}

func (s *IndexingService) fetchBundle(ctx context.Context, a domain.Adapter, l domain.Listing, location string) (domain.ListingBundle, error) {
	l.Source = a.Source()

	detail, err := a.GetDetail(ctx, l.ProviderID)
	switch {
	case err == nil:
		detail.Source, detail.ProviderID = l.Source, l.ProviderID
		l = overlayListing(l, detail)
	case isUpstreamNotFound(err):
		// search results can outlive the detail record; index what search gave us
		log.Warn().Str("source", l.Source).Str("provider_id", l.ProviderID).Msg("detail not found, using search listing")
	default:
		return domain.ListingBundle{}, fmt.Errorf("%s detail %s: %w", l.Source, l.ProviderID, err)
	}

	return s.reviewBundle(ctx, a, l, location)
}

// reviewBundle completes an already detailed listing with its reviews.
func (s *IndexingService) reviewBundle(ctx context.Context, a domain.Adapter, l domain.Listing, location string) (domain.ListingBundle, error) {
	reviews, err := a.GetReviews(ctx, l.ProviderID)
	if err != nil {
		if !isUpstreamNotFound(err) {
			return domain.ListingBundle{}, fmt.Errorf("%s reviews %s: %w", l.Source, l.ProviderID, err)
		}
		reviews = nil
	}

	return domain.ListingBundle{
		Listing:     l,
		Reviews:     reviews,
		Location:    location,
		Description: describe(reviews),
	}, nil
}

// resolve runs "find candidates -> score -> write" as one critical section.
func (s *IndexingService) resolve(ctx context.Context, b domain.ListingBundle) (indexOutcome, error) {
	unlock, err := s.lockMatching(ctx)
	if err != nil {
		return indexOutcome{}, err
	}
	defer unlock()

	l := b.Listing
	out, err := s.resolveLocked(ctx, b)
	if err != nil {
		return indexOutcome{}, err
	}

	outcome := "merged"
	if out.created {
		outcome = "created"
	}
	observability.ObserveIndexed(l.Source, outcome)
	log.Debug().
		Str("source", l.Source).
		Str("provider_id", l.ProviderID).
		Int64("restaurant_id", out.id).
		Int("score", out.score).
		Str("outcome", outcome).
		Msg("listing resolved")
	s.invalidateRestaurant(ctx, out.id)
	return out, nil
}

func (s *IndexingService) resolveLocked(ctx context.Context, b domain.ListingBundle) (indexOutcome, error) {
	l := b.Listing

	// a listing already linked to a restaurant is that restaurant
	linked, err := s.store.FindByExternalID(ctx, l.Source, l.ProviderID)
	switch {
	case err == nil:
		if err := s.store.MergeIntoRestaurant(ctx, linked.ID, b); err != nil {
			return indexOutcome{}, fmt.Errorf("merge %s/%s into %d: %w", l.Source, l.ProviderID, linked.ID, err)
		}
		return indexOutcome{id: linked.ID, score: 100}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return indexOutcome{}, fmt.Errorf("lookup external id %s/%s: %w", l.Source, l.ProviderID, err)
	}

	candidates, err := s.store.FindMatchCandidates(ctx, b.Location, l)
	if err != nil {
		return indexOutcome{}, fmt.Errorf("match candidates: %w", err)
	}
	best, score, ok := s.matcher.BestMatch(l, candidates)
	if len(candidates) > 0 {
		observability.ObserveMatchScore(score)
	}
	if ok {
		if err := s.store.MergeIntoRestaurant(ctx, best.ID, b); err != nil {
			return indexOutcome{}, fmt.Errorf("merge %s/%s into %d: %w", l.Source, l.ProviderID, best.ID, err)
		}
		return indexOutcome{id: best.ID, score: score}, nil
	}

	id, err := s.store.CreateRestaurant(ctx, b)
	if err != nil {
		return indexOutcome{}, fmt.Errorf("create from %s/%s: %w", l.Source, l.ProviderID, err)
	}
	return indexOutcome{id: id, created: true, score: score}, nil
}

func (s *IndexingService) lockMatching(ctx context.Context) (func(), error) {
	if err := s.matchSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	release, err := s.store.LockMatching(ctx)
	if err != nil {
		s.matchSem.Release(1)
		return nil, fmt.Errorf("match lock: %w", err)
	}
	return func() {
		release()
		s.matchSem.Release(1)
	}, nil
}

// overlayListing lets non-empty detail fields win over search fields.
func overlayListing(search, detail domain.Listing) domain.Listing {
	out := search
	if detail.Name != "" {
		out.Name = detail.Name
	}
	if detail.Address != "" {
		out.Address = detail.Address
	}
	if detail.HasCoords() {
		out.Lat, out.Lon = detail.Lat, detail.Lon
	}
	if detail.Phone != "" {
		out.Phone = detail.Phone
	}
	if detail.Rating != nil {
		out.Rating = detail.Rating
	}
	if detail.ReviewCount > 0 {
		out.ReviewCount = detail.ReviewCount
	}
	if len(detail.Categories) > 0 {
		out.Categories = detail.Categories
	}
	if len(detail.Photos) > 0 {
		out.Photos = detail.Photos
	}
	if detail.URL != "" {
		out.URL = detail.URL
	}
	return out
}

func isUpstreamNotFound(err error) bool {
	var apiErr *domain.APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
