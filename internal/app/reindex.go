package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"restaurant_catalog/internal/domain"
)

type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

type ReindexResult struct {
	RestaurantID   int64             `json:"restaurant_id"`
	SourcesUpdated []string          `json:"sources_updated"`
	SourcesFailed  []SourceFailure   `json:"sources_failed"`
	Changes        map[string]Change `json:"changes"`
}

// Reindex refreshes a restaurant from every provider it is linked to. A
// failing source is reported in SourcesFailed and never stops the others.
func (s *IndexingService) Reindex(ctx context.Context, id int64) (ReindexResult, error) {
	res := ReindexResult{
		RestaurantID:   id,
		SourcesUpdated: []string{},
		SourcesFailed:  []SourceFailure{},
		Changes:        map[string]Change{},
	}

	cur, err := s.store.GetRestaurant(ctx, id)
	if err != nil {
		return res, err
	}
	links, err := s.store.GetExternalIDs(ctx, id)
	if err != nil {
		return res, fmt.Errorf("external ids for %d: %w", id, err)
	}
	if len(links) == 0 {
		return res, nil
	}
	ratings, err := s.store.GetRatings(ctx, id)
	if err != nil {
		return res, fmt.Errorf("ratings for %d: %w", id, err)
	}
	bySource := make(map[string]domain.Rating, len(ratings))
	for _, r := range ratings {
		bySource[r.Source] = r
	}

	for _, link := range links {
		l, err := s.refreshSource(ctx, cur, link)
		if err != nil {
			log.Warn().Err(err).Int64("restaurant_id", id).Str("source", link.Source).Msg("reindex source failed")
			res.SourcesFailed = append(res.SourcesFailed, SourceFailure{Source: link.Source, Error: err.Error()})
			continue
		}
		diffListing(res.Changes, cur, bySource[link.Source], l)
		cur = applyListing(cur, l)
		res.SourcesUpdated = append(res.SourcesUpdated, link.Source)
	}

	if len(res.SourcesUpdated) > 0 {
		s.invalidateRestaurant(ctx, id)
		s.invalidateLocation(ctx, cur.Location)
	}
	log.Info().
		Int64("restaurant_id", id).
		Strs("updated", res.SourcesUpdated).
		Int("failed", len(res.SourcesFailed)).
		Int("changes", len(res.Changes)).
		Msg("restaurant reindexed")
	return res, nil
}

func (s *IndexingService) refreshSource(ctx context.Context, cur domain.Restaurant, link domain.ExternalID) (domain.Listing, error) {
	a, ok := s.Adapter(link.Source)
	if !ok || !a.Configured() {
		return domain.Listing{}, &domain.ConfigurationError{Source: link.Source}
	}
	l, err := a.GetDetail(ctx, link.ProviderID)
	if err != nil {
		return domain.Listing{}, err
	}
	l.Source, l.ProviderID = link.Source, link.ProviderID

	unlock, err := s.lockMatching(ctx)
	if err != nil {
		return domain.Listing{}, err
	}
	defer unlock()
	b := domain.ListingBundle{Listing: l, Location: cur.Location}
	if err := s.store.MergeIntoRestaurant(ctx, cur.ID, b); err != nil {
		return domain.Listing{}, fmt.Errorf("merge: %w", err)
	}
	return l, nil
}

// diffListing records fields l would change on cur. A key touched by
// several sources keeps its first old value and its latest new value.
func diffListing(changes map[string]Change, cur domain.Restaurant, rating domain.Rating, l domain.Listing) {
	set := func(key string, old, nu any) {
		if c, ok := changes[key]; ok {
			c.New = nu
			changes[key] = c
			return
		}
		changes[key] = Change{Old: old, New: nu}
	}

	if l.Name != "" && l.Name != cur.Name {
		set("name", cur.Name, l.Name)
	}
	if l.Address != "" && l.Address != cur.Address {
		set("address", cur.Address, l.Address)
	}
	if l.Phone != "" && l.Phone != cur.Phone {
		set("phone", cur.Phone, l.Phone)
	}
	if l.HasCoords() {
		if cur.Lat == nil || *cur.Lat != *l.Lat {
			set("latitude", derefF(cur.Lat), *l.Lat)
		}
		if cur.Lon == nil || *cur.Lon != *l.Lon {
			set("longitude", derefF(cur.Lon), *l.Lon)
		}
	}

	// the rating row is only written when the provider returns a score
	if l.Rating == nil {
		return
	}
	var oldScore any
	if !rating.FetchedAt.IsZero() {
		oldScore = rating.Score
	}
	if oldScore == nil || rating.Score != *l.Rating {
		set(l.Source+"_rating", oldScore, *l.Rating)
	}
	if l.ReviewCount != rating.ReviewCount {
		set(l.Source+"_review_count", rating.ReviewCount, l.ReviewCount)
	}
}

// applyListing mirrors the store's merge rule: non-empty fields overwrite.
func applyListing(cur domain.Restaurant, l domain.Listing) domain.Restaurant {
	if l.Name != "" {
		cur.Name = l.Name
	}
	if l.Address != "" {
		cur.Address = l.Address
	}
	if l.Phone != "" {
		cur.Phone = l.Phone
	}
	if l.HasCoords() {
		cur.Lat, cur.Lon = l.Lat, l.Lon
	}
	return cur
}

func derefF(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
