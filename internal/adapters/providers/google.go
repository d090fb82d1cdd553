package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"restaurant_catalog/internal/domain"
)

const (
	SourceGoogle      = "google"
	DefaultGoogleBase = "https://maps.googleapis.com/maps/api/place"

	googlePageSize     = 20
	googleDetailFields = "place_id,name,formatted_address,geometry,formatted_phone_number," +
		"international_phone_number,rating,user_ratings_total,types,photos,url"
)

// generic place types that say nothing about the cuisine
var googleSkipTypes = map[string]struct{}{
	"point_of_interest": {}, "establishment": {}, "food": {}, "store": {},
}

// Google adapts the Places web service. Text search pages through opaque
// tokens rather than offsets, so only the first page (offset 0) is served.
type Google struct {
	c   *Client
	key string
}

func NewGoogle(cfg Config) *Google {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleBase
	}
	key := cfg.APIKey
	return &Google{
		key: key,
		c: newClient(SourceGoogle, cfg, func(r *http.Request) {
			q := r.URL.Query()
			q.Set("key", key)
			r.URL.RawQuery = q.Encode()
		}),
	}
}

func (g *Google) Source() string   { return SourceGoogle }
func (g *Google) Configured() bool { return g.key != "" }

func (g *Google) SearchArea(ctx context.Context, location, category string, limit, offset int) ([]domain.Listing, error) {
	if !g.Configured() {
		return nil, &domain.ConfigurationError{Source: SourceGoogle}
	}
	if offset > 0 {
		return nil, nil
	}
	term := "restaurants"
	if category != "" {
		term = category + " restaurants"
	}
	return g.textSearch(ctx, "search", term+" in "+location, limit)
}

func (g *Google) SearchByName(ctx context.Context, name, location string, limit int) ([]domain.Listing, error) {
	if !g.Configured() {
		return nil, &domain.ConfigurationError{Source: SourceGoogle}
	}
	query := name
	if location != "" {
		query += " " + location
	}
	return g.textSearch(ctx, "search_by_name", query, limit)
}

func (g *Google) GetDetail(ctx context.Context, providerID string) (domain.Listing, error) {
	res, err := g.details(ctx, "detail", providerID, googleDetailFields)
	if err != nil {
		return domain.Listing{}, err
	}
	return g.mapPlace(res), nil
}

func (g *Google) GetReviews(ctx context.Context, providerID string) ([]domain.Review, error) {
	res, err := g.details(ctx, "reviews", providerID, "reviews")
	if err != nil {
		return nil, err
	}
	raw, _ := res["reviews"].([]any)
	revs := make([]domain.Review, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			revs = append(revs, mapGoogleReview(m))
		}
	}
	return revs, nil
}

func (g *Google) textSearch(ctx context.Context, endpoint, query string, limit int) ([]domain.Listing, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("type", "restaurant")
	var out map[string]any
	if err := g.c.getJSON(ctx, endpoint, "/textsearch/json", q, &out); err != nil {
		return nil, err
	}
	if err := googleStatus(out); err != nil {
		return nil, err
	}
	raw, _ := out["results"].([]any)
	n := clampLimit(limit, googlePageSize)
	ls := make([]domain.Listing, 0, len(raw))
	for _, it := range raw {
		if len(ls) == n {
			break
		}
		if m, ok := it.(map[string]any); ok {
			if l := g.mapPlace(m); l.ProviderID != "" {
				ls = append(ls, l)
			}
		}
	}
	return ls, nil
}

func (g *Google) details(ctx context.Context, endpoint, placeID, fields string) (map[string]any, error) {
	if !g.Configured() {
		return nil, &domain.ConfigurationError{Source: SourceGoogle}
	}
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", fields)
	var out map[string]any
	if err := g.c.getJSON(ctx, endpoint, "/details/json", q, &out); err != nil {
		return nil, err
	}
	if err := googleStatus(out); err != nil {
		return nil, err
	}
	res, _ := out["result"].(map[string]any)
	if res == nil {
		res = map[string]any{}
	}
	return res, nil
}

// googleStatus maps the in-body status of a 200 response onto APIError.
func googleStatus(out map[string]any) error {
	st := lookupStr(out, "status")
	var code int
	switch st {
	case "", "OK", "ZERO_RESULTS":
		return nil
	case "NOT_FOUND":
		code = http.StatusNotFound
	case "OVER_QUERY_LIMIT":
		code = http.StatusTooManyRequests
	case "REQUEST_DENIED":
		code = http.StatusForbidden
	case "INVALID_REQUEST":
		code = http.StatusBadRequest
	default:
		code = http.StatusBadGateway
	}
	return &domain.APIError{Source: SourceGoogle, Status: code, Body: joinNonEmpty(": ", st, lookupStr(out, "error_message"))}
}

func (g *Google) mapPlace(p map[string]any) domain.Listing {
	l := domain.Listing{
		Source:      SourceGoogle,
		ProviderID:  lookupStr(p, "place_id"),
		Name:        lookupStr(p, "name"),
		Address:     lookupStr(p, "formatted_address", "vicinity"),
		Lat:         getFloatFlexible(p, "geometry.location.lat"),
		Lon:         getFloatFlexible(p, "geometry.location.lng"),
		Phone:       lookupStr(p, "international_phone_number", "formatted_phone_number"),
		Rating:      getFloatFlexible(p, "rating"),
		ReviewCount: getIntFlexible(p, "user_ratings_total"),
		URL:         lookupStr(p, "url"),
	}
	for _, t := range firstSliceStrings(p, "types") {
		if _, skip := googleSkipTypes[t]; skip {
			continue
		}
		l.Categories = append(l.Categories, strings.ReplaceAll(t, "_", " "))
	}
	for _, ref := range firstSliceStrings(p, "photos", "photo_reference") {
		// the key is appended when the photo is served, never stored
		l.Photos = append(l.Photos, g.c.base+"/photo?maxwidth=800&photo_reference="+url.QueryEscape(ref))
	}
	return l
}

func mapGoogleReview(r map[string]any) domain.Review {
	author := lookupStr(r, "author_name")
	text := lookupStr(r, "text")
	rv := domain.Review{
		Source: SourceGoogle,
		Author: ptrStr(author),
		Rating: getFloatFlexible(r, "rating"),
		Text:   ptrStr(text),
		URL:    ptrStr(lookupStr(r, "author_url")),
	}
	if ts := getFloatFlexible(r, "time"); ts != nil {
		t := time.Unix(int64(*ts), 0).UTC()
		rv.PublishedAt = &t
	}
	rv.SourceID = reviewHash(author, text, rv.Rating)
	return rv
}
