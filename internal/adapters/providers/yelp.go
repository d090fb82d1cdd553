package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"restaurant_catalog/internal/domain"
)

const (
	SourceYelp      = "yelp"
	DefaultYelpBase = "https://api.yelp.com/v3"
)

// Yelp adapts the Yelp Fusion business API.
type Yelp struct {
	c   *Client
	key string
}

func NewYelp(cfg Config) *Yelp {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYelpBase
	}
	key := cfg.APIKey
	return &Yelp{
		key: key,
		c: newClient(SourceYelp, cfg, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+key)
		}),
	}
}

func (y *Yelp) Source() string   { return SourceYelp }
func (y *Yelp) Configured() bool { return y.key != "" }

func (y *Yelp) SearchArea(ctx context.Context, location, category string, limit, offset int) ([]domain.Listing, error) {
	q := url.Values{}
	q.Set("location", location)
	q.Set("categories", "restaurants")
	if category != "" {
		q.Set("categories", category)
	}
	q.Set("limit", strconv.Itoa(clampLimit(limit, 50)))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return y.search(ctx, "search", q)
}

func (y *Yelp) SearchByName(ctx context.Context, name, location string, limit int) ([]domain.Listing, error) {
	q := url.Values{}
	q.Set("term", name)
	q.Set("categories", "restaurants")
	if location != "" {
		q.Set("location", location)
	}
	q.Set("limit", strconv.Itoa(clampLimit(limit, 50)))
	return y.search(ctx, "search_by_name", q)
}

func (y *Yelp) GetDetail(ctx context.Context, providerID string) (domain.Listing, error) {
	if !y.Configured() {
		return domain.Listing{}, &domain.ConfigurationError{Source: SourceYelp}
	}
	var out map[string]any
	if err := y.c.getJSON(ctx, "detail", "/businesses/"+url.PathEscape(providerID), nil, &out); err != nil {
		return domain.Listing{}, err
	}
	return mapYelpBusiness(out), nil
}

func (y *Yelp) GetReviews(ctx context.Context, providerID string) ([]domain.Review, error) {
	if !y.Configured() {
		return nil, &domain.ConfigurationError{Source: SourceYelp}
	}
	var out map[string]any
	if err := y.c.getJSON(ctx, "reviews", "/businesses/"+url.PathEscape(providerID)+"/reviews", nil, &out); err != nil {
		return nil, err
	}
	raw, _ := out["reviews"].([]any)
	revs := make([]domain.Review, 0, len(raw))
	for _, it := range raw {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		revs = append(revs, mapYelpReview(m))
	}
	return revs, nil
}

func (y *Yelp) search(ctx context.Context, endpoint string, q url.Values) ([]domain.Listing, error) {
	if !y.Configured() {
		return nil, &domain.ConfigurationError{Source: SourceYelp}
	}
	var out map[string]any
	if err := y.c.getJSON(ctx, endpoint, "/businesses/search", q, &out); err != nil {
		return nil, err
	}
	raw, _ := out["businesses"].([]any)
	ls := make([]domain.Listing, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			if l := mapYelpBusiness(m); l.ProviderID != "" {
				ls = append(ls, l)
			}
		}
	}
	return ls, nil
}

func mapYelpBusiness(b map[string]any) domain.Listing {
	l := domain.Listing{
		Source:      SourceYelp,
		ProviderID:  lookupStr(b, "id"),
		Name:        lookupStr(b, "name"),
		Lat:         getFloatFlexible(b, "coordinates.latitude"),
		Lon:         getFloatFlexible(b, "coordinates.longitude"),
		Phone:       lookupStr(b, "phone", "display_phone"),
		Rating:      getFloatFlexible(b, "rating"),
		ReviewCount: getIntFlexible(b, "review_count"),
		Categories:  dedupe(firstSliceStrings(b, "categories", "title", "alias")),
		URL:         lookupStr(b, "url"),
	}

	if parts := firstSliceStrings(b, "location.display_address"); len(parts) > 0 {
		l.Address = strings.Join(parts, ", ")
	} else {
		l.Address = joinNonEmpty(", ",
			lookupStr(b, "location.address1"),
			lookupStr(b, "location.city"),
			lookupStr(b, "location.zip_code"),
		)
	}

	photos := firstSliceStrings(b, "photos")
	if img := lookupStr(b, "image_url"); img != "" {
		photos = append([]string{img}, photos...)
	}
	l.Photos = dedupe(photos)
	return l
}

func mapYelpReview(r map[string]any) domain.Review {
	author := lookupStr(r, "user.name")
	text := lookupStr(r, "text")
	rv := domain.Review{
		Source:   SourceYelp,
		SourceID: lookupStr(r, "id"),
		Author:   ptrStr(author),
		Rating:   getFloatFlexible(r, "rating"),
		Text:     ptrStr(text),
		URL:      ptrStr(lookupStr(r, "url")),
	}
	if ts := lookupStr(r, "time_created"); ts != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			rv.PublishedAt = &t
		}
	}
	if rv.SourceID == "" {
		rv.SourceID = reviewHash(author, text, rv.Rating)
	}
	return rv
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, sep)
}
