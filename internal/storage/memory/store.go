// Package memory is a process-local catalog store. It backs tests and the
// CATALOG_STORE=memory mode; nothing survives a restart.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"restaurant_catalog/internal/domain"
)

// candidateBoxDegrees matches the MySQL store's bounding box.
const candidateBoxDegrees = 0.005

type Store struct {
	mu   sync.RWMutex
	lock chan struct{}
	now  func() time.Time

	nextID      int64
	restaurants map[int64]*domain.Restaurant
	links       map[int64]map[string]string // restaurant -> source -> provider id
	ratings     map[int64]map[string]domain.Rating
	reviews     map[int64]map[string]domain.Review // key: source|source_id
	media       map[int64][]domain.Media
	// categories is the shared dictionary, keyed by folded name;
	// restaurantCats links restaurants to its IDs.
	categories     map[string]domain.Category
	restaurantCats map[int64]map[int64]struct{}
	writes         int
}

func New() *Store {
	return &Store{
		lock:        make(chan struct{}, 1),
		now:         time.Now,
		restaurants: map[int64]*domain.Restaurant{},
		links:       map[int64]map[string]string{},
		ratings:     map[int64]map[string]domain.Rating{},
		reviews:     map[int64]map[string]domain.Review{},
		media:       map[int64][]domain.Media{},
		categories:     map[string]domain.Category{},
		restaurantCats: map[int64]map[int64]struct{}{},
	}
}

func (s *Store) LockMatching(ctx context.Context) (func(), error) {
	select {
	case s.lock <- struct{}{}:
		return func() { <-s.lock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) CreateRestaurant(_ context.Context, b domain.ListingBundle) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now().UTC()
	l := b.Listing
	r := &domain.Restaurant{
		ID:          s.nextID,
		Name:        l.Name,
		Address:     l.Address,
		Lat:         l.Lat,
		Lon:         l.Lon,
		Phone:       l.Phone,
		Location:    b.Location,
		Description: b.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.restaurants[r.ID] = r
	s.attach(r.ID, b, now)
	s.writes++
	return r.ID, nil
}

func (s *Store) MergeIntoRestaurant(_ context.Context, id int64, b domain.ListingBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.restaurants[id]
	if !ok {
		return domain.ErrNotFound
	}
	l := b.Listing
	if l.Name != "" {
		r.Name = l.Name
	}
	if l.Address != "" {
		r.Address = l.Address
	}
	if l.HasCoords() {
		r.Lat, r.Lon = l.Lat, l.Lon
	}
	if l.Phone != "" {
		r.Phone = l.Phone
	}
	if r.Location == "" {
		r.Location = b.Location
	}
	if r.Description == "" {
		r.Description = b.Description
	}
	now := s.now().UTC()
	r.UpdatedAt = now
	s.attach(id, b, now)
	s.writes++
	return nil
}

// attach upserts the satellites of b onto restaurant id. Caller holds mu.
func (s *Store) attach(id int64, b domain.ListingBundle, now time.Time) {
	l := b.Listing
	if l.Source != "" && l.ProviderID != "" {
		if s.links[id] == nil {
			s.links[id] = map[string]string{}
		}
		s.links[id][l.Source] = l.ProviderID
	}
	if l.Rating != nil {
		if s.ratings[id] == nil {
			s.ratings[id] = map[string]domain.Rating{}
		}
		s.ratings[id][l.Source] = domain.Rating{
			RestaurantID: id, Source: l.Source, Score: *l.Rating, ReviewCount: l.ReviewCount, FetchedAt: now,
		}
	}
	for _, u := range l.Photos {
		dup := false
		for _, m := range s.media[id] {
			if m.URL == u {
				dup = true
				break
			}
		}
		if !dup {
			s.media[id] = append(s.media[id], domain.Media{RestaurantID: id, Source: l.Source, URL: u})
		}
	}
	for _, rv := range b.Reviews {
		if s.reviews[id] == nil {
			s.reviews[id] = map[string]domain.Review{}
		}
		rv.RestaurantID = id
		s.reviews[id][rv.Source+"|"+rv.SourceID] = rv
	}
	for _, name := range l.Categories {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		c, ok := s.categories[key]
		if !ok {
			c = domain.Category{ID: int64(len(s.categories) + 1), Name: name}
			s.categories[key] = c
		}
		if s.restaurantCats[id] == nil {
			s.restaurantCats[id] = map[int64]struct{}{}
		}
		s.restaurantCats[id][c.ID] = struct{}{}
	}
}

func (s *Store) FindMatchCandidates(_ context.Context, area string, l domain.Listing) ([]domain.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	phone := digits(l.Phone)
	var out []domain.Restaurant
	for _, r := range s.restaurants {
		switch {
		case area != "" && strings.EqualFold(r.Location, area):
		case l.HasCoords() && r.Lat != nil && r.Lon != nil &&
			math.Abs(*r.Lat-*l.Lat) <= candidateBoxDegrees && math.Abs(*r.Lon-*l.Lon) <= candidateBoxDegrees:
		case phone != "" && digits(r.Phone) == phone:
		default:
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindByExternalID(_ context.Context, source, providerID string) (domain.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.links))
	for id := range s.links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if s.links[id][source] == providerID {
			return *s.restaurants[id], nil
		}
	}
	return domain.Restaurant{}, domain.ErrNotFound
}

func (s *Store) GetRestaurant(_ context.Context, id int64) (domain.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restaurants[id]
	if !ok {
		return domain.Restaurant{}, domain.ErrNotFound
	}
	return *r, nil
}

func (s *Store) GetExternalIDs(_ context.Context, id int64) ([]domain.ExternalID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.externalIDsLocked(id), nil
}

func (s *Store) externalIDsLocked(id int64) []domain.ExternalID {
	out := make([]domain.ExternalID, 0, len(s.links[id]))
	for src, pid := range s.links[id] {
		out = append(out, domain.ExternalID{RestaurantID: id, Source: src, ProviderID: pid})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (s *Store) GetRatings(_ context.Context, id int64) ([]domain.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ratingsLocked(id), nil
}

func (s *Store) ratingsLocked(id int64) []domain.Rating {
	out := make([]domain.Rating, 0, len(s.ratings[id]))
	for _, r := range s.ratings[id] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Reviews returns the stored reviews of a restaurant ordered by source key.
func (s *Store) Reviews(id int64) []domain.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.reviews[id]))
	for k := range s.reviews[id] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.Review, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.reviews[id][k])
	}
	return out
}

// ListReviews returns up to limit reviews, newest first. Undated reviews
// sort last.
func (s *Store) ListReviews(ctx context.Context, id int64, limit int) ([]domain.Review, error) {
	rs := s.Reviews(id)
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].PublishedAt, rs[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	return rs, nil
}

// Restaurants returns every canonical restaurant ordered by id.
// Categories returns the category dictionary ordered by ID.
func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Restaurants() []domain.Restaurant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Writes counts create and merge calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) GetRestaurantView(_ context.Context, id int64) (domain.RestaurantView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restaurants[id]
	if !ok {
		return domain.RestaurantView{}, domain.ErrNotFound
	}
	return s.viewLocked(r), nil
}

func (s *Store) ListByLocation(_ context.Context, location string, limit int) ([]domain.RestaurantView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rs []*domain.Restaurant
	for _, r := range s.restaurants {
		if strings.EqualFold(r.Location, location) {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	out := make([]domain.RestaurantView, 0, len(rs))
	for _, r := range rs {
		out = append(out, s.viewLocked(r))
	}
	return out, nil
}

func (s *Store) viewLocked(r *domain.Restaurant) domain.RestaurantView {
	v := domain.RestaurantView{
		ID:          r.ID,
		Name:        r.Name,
		Address:     r.Address,
		Phone:       r.Phone,
		Location:    r.Location,
		Description: r.Description,
		Categories:  []string{},
		ExternalIDs: s.externalIDsLocked(r.ID),
		Ratings:     s.ratingsLocked(r.ID),
		Photos:      append([]domain.Media{}, s.media[r.ID]...),
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Lat != nil && r.Lon != nil {
		v.Coords = &domain.Coords{Lat: *r.Lat, Lon: *r.Lon}
	}
	for _, c := range s.categories {
		if _, ok := s.restaurantCats[r.ID][c.ID]; ok {
			v.Categories = append(v.Categories, c.Name)
		}
	}
	sort.Strings(v.Categories)
	return v
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
