package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"restaurant_catalog/internal/adapters/providers"
	"restaurant_catalog/internal/domain"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestYelp_SearchArea_MapsBusinesses(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/businesses/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.URL.Query().Get("categories"); got != "pizza" {
			t.Errorf("expected category filter, got %q", got)
		}
		if got := r.URL.Query().Get("offset"); got != "20" {
			t.Errorf("expected offset 20, got %q", got)
		}
		writeJSON(w, map[string]any{"businesses": []any{
			map[string]any{
				"id":           "joes-pizza-nyc",
				"name":         "Joe's Pizza",
				"coordinates":  map[string]any{"latitude": 40.7306, "longitude": -74.0021},
				"phone":        "+12123661182",
				"rating":       4.5,
				"review_count": 1200,
				"image_url":    "https://img/1.jpg",
				"categories":   []any{map[string]any{"alias": "pizza", "title": "Pizza"}},
				"location":     map[string]any{"display_address": []any{"7 Carmine St", "New York, NY 10014"}},
			},
			map[string]any{"name": "no id, dropped"},
		}})
	}))
	defer ts.Close()

	y := providers.NewYelp(providers.Config{BaseURL: ts.URL, APIKey: "k", RPS: 100})
	ls, err := y.SearchArea(ctxT(t), "New York", "pizza", 20, 20)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(ls) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(ls))
	}
	l := ls[0]
	if l.Source != "yelp" || l.ProviderID != "joes-pizza-nyc" || l.Name != "Joe's Pizza" {
		t.Fatalf("unexpected listing: %+v", l)
	}
	if l.Address != "7 Carmine St, New York, NY 10014" || l.Lat == nil || *l.Lat != 40.7306 {
		t.Fatalf("unexpected address/coords: %+v", l)
	}
	if l.ReviewCount != 1200 || l.Rating == nil || *l.Rating != 4.5 {
		t.Fatalf("unexpected rating: %+v", l)
	}
	if len(l.Categories) != 1 || l.Categories[0] != "Pizza" || len(l.Photos) != 1 {
		t.Fatalf("unexpected categories/photos: %+v", l)
	}
}

func TestYelp_Reviews_HashWhenNoID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"reviews": []any{
			map[string]any{"id": "r1", "text": "Great slice", "rating": 5, "time_created": "2024-03-01 12:00:00", "user": map[string]any{"name": "Ana"}},
			map[string]any{"text": "Quick and cheap", "rating": 4},
		}})
	}))
	defer ts.Close()

	y := providers.NewYelp(providers.Config{BaseURL: ts.URL, APIKey: "k", RPS: 100})
	revs, err := y.GetReviews(ctxT(t), "joes-pizza-nyc")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(revs) != 2 || revs[0].SourceID != "r1" || revs[0].PublishedAt == nil || *revs[0].Author != "Ana" {
		t.Fatalf("unexpected first review: %+v", revs)
	}
	if len(revs[1].SourceID) != 40 {
		t.Fatalf("expected sha1 source id, got %q", revs[1].SourceID)
	}
}

func TestClient_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			writeJSON(w, map[string]any{"id": "x", "name": "X"})
		}
	}))
	defer ts.Close()

	y := providers.NewYelp(providers.Config{BaseURL: ts.URL, APIKey: "k", RPS: 100})
	l, err := y.GetDetail(ctxT(t), "x")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if l.ProviderID != "x" {
		t.Fatalf("unexpected listing: %+v", l)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_NonRetryableStatusIsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"TOKEN_INVALID"}}`))
	}))
	defer ts.Close()

	y := providers.NewYelp(providers.Config{BaseURL: ts.URL, APIKey: "bad", RPS: 100})
	_, err := y.GetDetail(ctxT(t), "x")
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Body == "" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if providers.IsNotFound(err) {
		t.Fatalf("401 is not a not-found")
	}
}

func TestClient_404IsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	y := providers.NewYelp(providers.Config{BaseURL: ts.URL, APIKey: "k", RPS: 100})
	if _, err := y.GetDetail(ctxT(t), "gone"); !providers.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClient_QuotaExceeded(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, map[string]any{"id": "x"})
	}))
	defer ts.Close()

	y := providers.NewYelp(providers.Config{BaseURL: ts.URL, APIKey: "k", RPS: 100, Quota: 2, Counter: providers.NewMemoryCounter(time.Hour)})
	for i := 0; i < 2; i++ {
		if _, err := y.GetDetail(ctxT(t), "x"); err != nil {
			t.Fatalf("call %d: unexpected err: %v", i, err)
		}
	}
	_, err := y.GetDetail(ctxT(t), "x")
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.Count != 3 || rl.Limit != 2 || rl.Source != "yelp" {
		t.Fatalf("unexpected RateLimitError: %+v", rl)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("quota must stop the request before it is sent, got %d hits", hits)
	}
}

func TestUnconfiguredAdapters(t *testing.T) {
	for _, a := range providers.Default(providers.Config{}, providers.Config{}) {
		if a.Configured() {
			t.Fatalf("%s should not be configured without a key", a.Source())
		}
		_, err := a.SearchArea(ctxT(t), "Paris", "", 10, 0)
		var ce *domain.ConfigurationError
		if !errors.As(err, &ce) || ce.Source != a.Source() {
			t.Fatalf("%s: expected ConfigurationError, got %v", a.Source(), err)
		}
	}
}

func TestGoogle_DetailAndReviews(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "gk" {
			t.Errorf("missing key param")
		}
		switch r.URL.Query().Get("place_id") {
		case "missing":
			writeJSON(w, map[string]any{"status": "NOT_FOUND"})
			return
		}
		if r.URL.Query().Get("fields") == "reviews" {
			writeJSON(w, map[string]any{"status": "OK", "result": map[string]any{"reviews": []any{
				map[string]any{"author_name": "Bo", "rating": 4, "text": "Solid", "time": 1700000000},
			}}})
			return
		}
		writeJSON(w, map[string]any{"status": "OK", "result": map[string]any{
			"place_id":                   "ChIJ1",
			"name":                       "Joe's Pizza",
			"formatted_address":          "7 Carmine St, New York, NY 10014, USA",
			"geometry":                   map[string]any{"location": map[string]any{"lat": 40.7306, "lng": -74.0021}},
			"international_phone_number": "+1 212-366-1182",
			"rating":                     4.6,
			"user_ratings_total":         9000,
			"types":                      []any{"restaurant", "food", "point_of_interest"},
			"photos":                     []any{map[string]any{"photo_reference": "ref1"}},
		}})
	}))
	defer ts.Close()

	g := providers.NewGoogle(providers.Config{BaseURL: ts.URL, APIKey: "gk", RPS: 100})
	l, err := g.GetDetail(ctxT(t), "ChIJ1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if l.Source != "google" || l.ProviderID != "ChIJ1" || l.Lon == nil || *l.Lon != -74.0021 || l.ReviewCount != 9000 {
		t.Fatalf("unexpected listing: %+v", l)
	}
	if len(l.Categories) != 1 || l.Categories[0] != "restaurant" {
		t.Fatalf("generic types should be dropped: %v", l.Categories)
	}
	if len(l.Photos) != 1 {
		t.Fatalf("expected one photo, got %v", l.Photos)
	}

	revs, err := g.GetReviews(ctxT(t), "ChIJ1")
	if err != nil || len(revs) != 1 || revs[0].PublishedAt == nil || revs[0].SourceID == "" {
		t.Fatalf("unexpected reviews %+v err=%v", revs, err)
	}

	if _, err := g.GetDetail(ctxT(t), "missing"); !providers.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND to map to 404, got %v", err)
	}
}

func TestGoogle_OffsetBeyondFirstPageIsEmpty(t *testing.T) {
	g := providers.NewGoogle(providers.Config{BaseURL: "http://127.0.0.1:1", APIKey: "gk"})
	ls, err := g.SearchArea(ctxT(t), "Paris", "", 20, 20)
	if err != nil || len(ls) != 0 {
		t.Fatalf("expected empty page without a request, got %v err=%v", ls, err)
	}
}
