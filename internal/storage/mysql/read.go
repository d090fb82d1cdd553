package mysql

import (
	"context"
	"database/sql"
	"errors"

	"restaurant_catalog/internal/domain"
)

func (r *Repo) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	rest, err := scanRestaurant(r.db.QueryRowContext(ctx, getRestaurantSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Restaurant{}, domain.ErrNotFound
	}
	return rest, err
}

func (r *Repo) GetExternalIDs(ctx context.Context, id int64) ([]domain.ExternalID, error) {
	rows, err := r.db.QueryContext(ctx, listExternalIDsSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ExternalID{}
	for rows.Next() {
		e := domain.ExternalID{RestaurantID: id}
		if err := rows.Scan(&e.Source, &e.ProviderID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) GetRatings(ctx context.Context, id int64) ([]domain.Rating, error) {
	rows, err := r.db.QueryContext(ctx, listRatingsSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Rating{}
	for rows.Next() {
		rt := domain.Rating{RestaurantID: id}
		if err := rows.Scan(&rt.Source, &rt.Score, &rt.ReviewCount, &rt.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *Repo) GetRestaurantView(ctx context.Context, id int64) (domain.RestaurantView, error) {
	rest, err := r.GetRestaurant(ctx, id)
	if err != nil {
		return domain.RestaurantView{}, err
	}
	return r.view(ctx, rest)
}

func (r *Repo) ListByLocation(ctx context.Context, location string, limit int) ([]domain.RestaurantView, error) {
	rows, err := r.db.QueryContext(ctx, listByLocationSQL, location, limit)
	if err != nil {
		return nil, err
	}
	var rs []domain.Restaurant
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rs = append(rs, rest)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]domain.RestaurantView, 0, len(rs))
	for _, rest := range rs {
		v, err := r.view(ctx, rest)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Repo) ListReviews(ctx context.Context, id int64, limit int) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		rv := domain.Review{RestaurantID: id}
		var (
			author, text, url sql.NullString
			rating            sql.NullFloat64
			published         sql.NullTime
		)
		if err := rows.Scan(&rv.ID, &rv.Source, &rv.SourceID, &author, &rating, &text, &url, &published); err != nil {
			return nil, err
		}
		if author.Valid {
			s := author.String
			rv.Author = &s
		}
		if rating.Valid {
			f := rating.Float64
			rv.Rating = &f
		}
		if text.Valid {
			s := text.String
			rv.Text = &s
		}
		if url.Valid {
			s := url.String
			rv.URL = &s
		}
		if published.Valid {
			t := published.Time
			rv.PublishedAt = &t
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) view(ctx context.Context, rest domain.Restaurant) (domain.RestaurantView, error) {
	v := domain.RestaurantView{
		ID:          rest.ID,
		Name:        rest.Name,
		Address:     rest.Address,
		Phone:       rest.Phone,
		Location:    rest.Location,
		Description: rest.Description,
		Categories:  []string{},
		Photos:      []domain.Media{},
		UpdatedAt:   rest.UpdatedAt,
	}
	if rest.Lat != nil && rest.Lon != nil {
		v.Coords = &domain.Coords{Lat: *rest.Lat, Lon: *rest.Lon}
	}

	var err error
	if v.ExternalIDs, err = r.GetExternalIDs(ctx, rest.ID); err != nil {
		return v, err
	}
	if v.Ratings, err = r.GetRatings(ctx, rest.ID); err != nil {
		return v, err
	}

	rows, err := r.db.QueryContext(ctx, listMediaSQL, rest.ID)
	if err != nil {
		return v, err
	}
	for rows.Next() {
		m := domain.Media{RestaurantID: rest.ID}
		if err := rows.Scan(&m.Source, &m.URL); err != nil {
			rows.Close()
			return v, err
		}
		v.Photos = append(v.Photos, m)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, listCategoriesSQL, rest.ID)
	if err != nil {
		return v, err
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return v, err
		}
		v.Categories = append(v.Categories, c)
	}
	return v, rows.Err()
}
