package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"restaurant_catalog/internal/domain"
)

type SingleResult struct {
	RestaurantID   int64    `json:"restaurant_id"`
	SourcesIndexed []string `json:"sources_indexed"`
}

// IndexSingleListing indexes one listing picked from source, then probes
// every other configured adapter by name so the restaurant ends up linked
// to each provider that knows it. Probe failures only cost the enrichment.
func (s *IndexingService) IndexSingleListing(ctx context.Context, l domain.Listing, source, location string) (SingleResult, error) {
	a, err := s.configuredAdapter(source)
	if err != nil {
		return SingleResult{}, err
	}
	b, err := s.fetchBundle(ctx, a, l, location)
	if err != nil {
		return SingleResult{}, err
	}
	return s.indexSingle(ctx, b, location)
}

// IndexByProviderID is IndexSingleListing for a provider id alone. An
// unknown id surfaces as the adapter's not-found error.
func (s *IndexingService) IndexByProviderID(ctx context.Context, source, providerID, location string) (SingleResult, error) {
	a, err := s.configuredAdapter(source)
	if err != nil {
		return SingleResult{}, err
	}
	l, err := a.GetDetail(ctx, providerID)
	if err != nil {
		return SingleResult{}, fmt.Errorf("%s detail %s: %w", source, providerID, err)
	}
	l.Source, l.ProviderID = source, providerID
	b, err := s.reviewBundle(ctx, a, l, location)
	if err != nil {
		return SingleResult{}, err
	}
	return s.indexSingle(ctx, b, location)
}

func (s *IndexingService) configuredAdapter(source string) (domain.Adapter, error) {
	a, ok := s.Adapter(source)
	if !ok || !a.Configured() {
		return nil, &domain.ConfigurationError{Source: source}
	}
	return a, nil
}

func (s *IndexingService) indexSingle(ctx context.Context, b domain.ListingBundle, location string) (SingleResult, error) {
	source := b.Listing.Source
	out, err := s.resolve(ctx, b)
	if err != nil {
		return SingleResult{}, err
	}
	res := SingleResult{RestaurantID: out.id, SourcesIndexed: []string{source}}

	rest, err := s.store.GetRestaurant(ctx, out.id)
	if err != nil {
		return res, fmt.Errorf("load restaurant %d: %w", out.id, err)
	}

	for _, other := range s.Configured() {
		if other.Source() == source {
			continue
		}
		merged, err := s.probe(ctx, other, rest, location)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn().Err(err).Str("source", other.Source()).Int64("restaurant_id", rest.ID).Msg("enrichment probe failed")
			continue
		}
		if merged {
			res.SourcesIndexed = append(res.SourcesIndexed, other.Source())
		}
	}
	if location != "" {
		s.invalidateLocation(ctx, location)
	}
	return res, nil
}

// probe searches a by the restaurant's name and merges the best listing
// when it clears the match threshold.
func (s *IndexingService) probe(ctx context.Context, a domain.Adapter, rest domain.Restaurant, location string) (bool, error) {
	found, err := a.SearchByName(ctx, rest.Name, location, s.cfg.ProbeLimit)
	if err != nil {
		return false, err
	}

	bestIdx, bestScore := -1, -1
	for i, l := range found {
		if sc := s.matcher.Score(l, rest); sc > bestScore {
			bestIdx, bestScore = i, sc
		}
	}
	if bestIdx < 0 || !s.matcher.IsMatch(bestScore) {
		return false, nil
	}

	b, err := s.fetchBundle(ctx, a, found[bestIdx], location)
	if err != nil {
		return false, err
	}
	if b.Location == "" {
		b.Location = rest.Location
	}

	unlock, err := s.lockMatching(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	linked, err := s.store.FindByExternalID(ctx, b.Listing.Source, b.Listing.ProviderID)
	switch {
	case err == nil && linked.ID != rest.ID:
		log.Info().
			Str("source", b.Listing.Source).
			Str("provider_id", b.Listing.ProviderID).
			Int64("restaurant_id", rest.ID).
			Int64("linked_to", linked.ID).
			Msg("probe hit already linked elsewhere, skipping")
		return false, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return false, err
	}

	if err := s.store.MergeIntoRestaurant(ctx, rest.ID, b); err != nil {
		return false, fmt.Errorf("merge probe %s/%s into %d: %w", b.Listing.Source, b.Listing.ProviderID, rest.ID, err)
	}
	s.invalidateRestaurant(ctx, rest.ID)
	return true, nil
}
