package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant_catalog/internal/domain"
)

func pf(f float64) *float64 { return &f }

func TestMerge_EmptyFieldsNeverOverwrite(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, _ := s.CreateRestaurant(ctx, domain.ListingBundle{
		Listing:     domain.Listing{Source: "yelp", ProviderID: "y1", Name: "Nopa", Address: "560 Divisadero St", Phone: "+14158648643", Lat: pf(37.77), Lon: pf(-122.43)},
		Location:    "San Francisco",
		Description: "first",
	})

	err := s.MergeIntoRestaurant(ctx, id, domain.ListingBundle{
		Listing:     domain.Listing{Source: "google", ProviderID: "g1", Name: "NOPA Restaurant"},
		Location:    "SF",
		Description: "second",
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	r, _ := s.GetRestaurant(ctx, id)
	if r.Name != "NOPA Restaurant" || r.Address != "560 Divisadero St" || r.Phone != "+14158648643" || r.Lat == nil {
		t.Fatalf("unexpected merge result: %+v", r)
	}
	if r.Location != "San Francisco" || r.Description != "first" {
		t.Fatalf("location/description overwritten: %+v", r)
	}
	ids, _ := s.GetExternalIDs(ctx, id)
	if len(ids) != 2 {
		t.Fatalf("external ids = %+v", ids)
	}
}

func TestMerge_UnknownRestaurant(t *testing.T) {
	err := New().MergeIntoRestaurant(context.Background(), 5, domain.ListingBundle{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFindMatchCandidates_Scoping(t *testing.T) {
	s := New()
	ctx := context.Background()
	inArea, _ := s.CreateRestaurant(ctx, domain.ListingBundle{Listing: domain.Listing{Name: "A"}, Location: "Oakland"})
	near, _ := s.CreateRestaurant(ctx, domain.ListingBundle{Listing: domain.Listing{Name: "B", Lat: pf(37.7601), Lon: pf(-122.4201)}})
	samePhone, _ := s.CreateRestaurant(ctx, domain.ListingBundle{Listing: domain.Listing{Name: "C", Phone: "(415) 555-0100"}})
	_, _ = s.CreateRestaurant(ctx, domain.ListingBundle{Listing: domain.Listing{Name: "far", Lat: pf(40.0), Lon: pf(-74.0)}})

	got, err := s.FindMatchCandidates(ctx, "oakland", domain.Listing{Lat: pf(37.76), Lon: pf(-122.42), Phone: "415.555.0100"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 3 || got[0].ID != inArea || got[1].ID != near || got[2].ID != samePhone {
		t.Fatalf("candidates = %+v", got)
	}
}

func TestSatellitesAreDeduplicated(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := domain.ListingBundle{
		Listing: domain.Listing{Source: "yelp", ProviderID: "y1", Name: "Nopa", Rating: pf(4.0), ReviewCount: 10, Photos: []string{"http://p/1"}, Categories: []string{"newamerican"}},
		Reviews: []domain.Review{{Source: "yelp", SourceID: "r1"}},
	}
	id, _ := s.CreateRestaurant(ctx, b)
	b.Listing.Rating = pf(4.5)
	if err := s.MergeIntoRestaurant(ctx, id, b); err != nil {
		t.Fatalf("merge: %v", err)
	}

	v, _ := s.GetRestaurantView(ctx, id)
	if len(v.Photos) != 1 || len(v.Categories) != 1 || len(v.Ratings) != 1 || v.Ratings[0].Score != 4.5 {
		t.Fatalf("view = %+v", v)
	}
	if got := len(s.Reviews(id)); got != 1 {
		t.Fatalf("reviews = %d, want 1", got)
	}
}

func TestLockMatching_HonoursContext(t *testing.T) {
	s := New()
	release, err := s.LockMatching(context.Background())
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.LockMatching(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second lock: want deadline, got %v", err)
	}
	release()
	release2, err := s.LockMatching(context.Background())
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	release2()
}

func TestListReviews_NewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	id, _ := s.CreateRestaurant(ctx, domain.ListingBundle{
		Listing: domain.Listing{Name: "Nopa"},
		Reviews: []domain.Review{
			{Source: "yelp", SourceID: "a", PublishedAt: &t1},
			{Source: "yelp", SourceID: "b"},
			{Source: "yelp", SourceID: "c", PublishedAt: &t2},
		},
	})
	got, _ := s.ListReviews(ctx, id, 10)
	if len(got) != 3 || got[0].SourceID != "c" || got[1].SourceID != "a" || got[2].SourceID != "b" {
		t.Fatalf("order = %+v", got)
	}
}

func TestCategories_SharedDictionary(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := s.CreateRestaurant(ctx, domain.ListingBundle{Listing: domain.Listing{Source: "yelp", ProviderID: "y1", Name: "Tartine", Categories: []string{"Bakeries", "cafes"}}})
	b, _ := s.CreateRestaurant(ctx, domain.ListingBundle{Listing: domain.Listing{Source: "yelp", ProviderID: "y2", Name: "B. Patisserie", Categories: []string{"bakeries", " "}}})

	cats := s.Categories()
	if len(cats) != 2 || cats[0].Name != "Bakeries" || cats[1].Name != "cafes" {
		t.Fatalf("dictionary = %+v", cats)
	}
	va, _ := s.GetRestaurantView(ctx, a)
	vb, _ := s.GetRestaurantView(ctx, b)
	if len(va.Categories) != 2 || len(vb.Categories) != 1 || vb.Categories[0] != "Bakeries" {
		t.Fatalf("links: a=%v b=%v", va.Categories, vb.Categories)
	}
}
