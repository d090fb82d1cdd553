package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"restaurant_catalog/internal/domain"
)

// candidateBoxDegrees bounds the coordinate prefilter (roughly 500 m of
// latitude); the matcher's GPS radius is smaller so nothing it could score is
// excluded.
const candidateBoxDegrees = 0.005

const candidateLimit = 200

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valPStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

type Repo struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func New(db *sql.DB) *Repo { return &Repo{db: db, lockTimeout: 30 * time.Second} }

func (r *Repo) CreateRestaurant(ctx context.Context, b domain.ListingBundle) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	l := b.Listing
	lat, lon := coords(l)
	res, err := tx.ExecContext(ctx, insertRestaurantSQL,
		l.Name,
		valStr(l.Address),
		lat, lon,
		valStr(l.Phone),
		valStr(digits(l.Phone)),
		valStr(b.Location),
		valStr(b.Description),
	)
	if err != nil {
		return 0, fmt.Errorf("insert restaurant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := attach(ctx, tx, id, b); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func (r *Repo) MergeIntoRestaurant(ctx context.Context, id int64, b domain.ListingBundle) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var got int64
	if err := tx.QueryRowContext(ctx, lockRestaurantSQL, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	l := b.Listing
	lat, lon := coords(l)
	if _, err := tx.ExecContext(ctx, mergeRestaurantSQL,
		l.Name,
		l.Address,
		lat, lon,
		l.Phone,
		digits(l.Phone),
		b.Location,
		b.Description,
		id,
	); err != nil {
		return fmt.Errorf("update restaurant: %w", err)
	}
	if err := attach(ctx, tx, id, b); err != nil {
		return err
	}
	return tx.Commit()
}

// attach upserts everything hanging off a restaurant row.
func attach(ctx context.Context, tx *sql.Tx, id int64, b domain.ListingBundle) error {
	l := b.Listing
	if l.Source != "" && l.ProviderID != "" {
		if _, err := tx.ExecContext(ctx, upsertExternalIDSQL, id, l.Source, l.ProviderID); err != nil {
			return fmt.Errorf("upsert external id: %w", err)
		}
	}
	if l.Rating != nil {
		if _, err := tx.ExecContext(ctx, upsertRatingSQL, id, l.Source, *l.Rating, l.ReviewCount); err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}
	}
	for _, u := range l.Photos {
		if _, err := tx.ExecContext(ctx, insertMediaSQL, id, l.Source, u); err != nil {
			return fmt.Errorf("insert media: %w", err)
		}
	}
	for _, c := range l.Categories {
		if err := linkCategory(ctx, tx, id, c); err != nil {
			return err
		}
	}
	return upsertReviews(ctx, tx, id, b.Reviews)
}

// linkCategory ensures the dictionary row for name exists and links it to
// restaurant id.
func linkCategory(ctx context.Context, tx *sql.Tx, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, insertCategorySQL, name); err != nil {
		return fmt.Errorf("insert category %q: %w", name, err)
	}
	var cid int64
	if err := tx.QueryRowContext(ctx, categoryIDSQL, name).Scan(&cid); err != nil {
		return fmt.Errorf("lookup category %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, linkCategorySQL, id, cid); err != nil {
		return fmt.Errorf("link category %q: %w", name, err)
	}
	return nil
}

func upsertReviews(ctx context.Context, tx *sql.Tx, id int64, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*8)
	for _, rv := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?)")
		args = append(args,
			id,
			rv.Source,
			rv.SourceID,
			valPStr(rv.Author),
			valF64(rv.Rating),
			valPStr(rv.Text),
			valPStr(rv.URL),
			valTime(rv.PublishedAt),
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert reviews: %w", err)
	}
	return nil
}

// FindMatchCandidates returns restaurants near l or sharing its phone
// number, followed by up to candidateLimit more indexed under area. The near
// set is never capped, so a crowded area cannot push out the closest rows.
func (r *Repo) FindMatchCandidates(ctx context.Context, area string, l domain.Listing) ([]domain.Restaurant, error) {
	queries, err := candidateQueries(area, l)
	if err != nil {
		return nil, err
	}
	var out []domain.Restaurant
	seen := map[int64]bool{}
	for _, cq := range queries {
		rows, err := r.db.QueryContext(ctx, cq.query, cq.args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			rest, err := scanRestaurant(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if !seen[rest.ID] {
				seen[rest.ID] = true
				out = append(out, rest)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type candidateQuery struct {
	query string
	args  []any
}

// candidateQueries builds the near query (coordinate box or phone) and the
// capped area query, in that order. Either is omitted when the listing has
// nothing to scope it by.
func candidateQueries(area string, l domain.Listing) ([]candidateQuery, error) {
	var out []candidateQuery

	near := sq.Or{}
	if l.HasCoords() {
		near = append(near, sq.And{
			sq.Expr("lat BETWEEN ? AND ?", *l.Lat-candidateBoxDegrees, *l.Lat+candidateBoxDegrees),
			sq.Expr("lon BETWEEN ? AND ?", *l.Lon-candidateBoxDegrees, *l.Lon+candidateBoxDegrees),
		})
	}
	if p := digits(l.Phone); p != "" {
		near = append(near, sq.Eq{"phone_digits": p})
	}
	if len(near) > 0 {
		q, args, err := sq.Select(restaurantCols).From("restaurants").Where(near).OrderBy("id").ToSql()
		if err != nil {
			return nil, err
		}
		out = append(out, candidateQuery{q, args})
	}

	if area != "" {
		q, args, err := sq.Select(restaurantCols).
			From("restaurants").
			Where(sq.Eq{"location": area}).
			OrderBy("id").
			Limit(candidateLimit).
			ToSql()
		if err != nil {
			return nil, err
		}
		out = append(out, candidateQuery{q, args})
	}
	return out, nil
}

func (r *Repo) FindByExternalID(ctx context.Context, source, providerID string) (domain.Restaurant, error) {
	rest, err := scanRestaurant(r.db.QueryRowContext(ctx, findByExternalIDSQL, source, providerID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Restaurant{}, domain.ErrNotFound
	}
	return rest, err
}

// LockMatching takes a MySQL named lock on a dedicated connection, so every
// process sharing the database serializes its match critical sections.
func (r *Repo) LockMatching(ctx context.Context) (func(), error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, getLockSQL, matchLockName, int(r.lockTimeout.Seconds())).Scan(&got); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !got.Valid || got.Int64 != 1 {
		_ = conn.Close()
		return nil, fmt.Errorf("GET_LOCK %s timed out after %s", matchLockName, r.lockTimeout)
	}
	return func() {
		var released sql.NullInt64
		_ = conn.QueryRowContext(context.Background(), releaseLockSQL, matchLockName).Scan(&released)
		_ = conn.Close()
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(s rowScanner) (domain.Restaurant, error) {
	var rest domain.Restaurant
	var address, phone, location, desc sql.NullString
	var lat, lon sql.NullFloat64
	if err := s.Scan(
		&rest.ID,
		&rest.Name,
		&address,
		&lat, &lon,
		&phone,
		&location,
		&desc,
		&rest.CreatedAt,
		&rest.UpdatedAt,
	); err != nil {
		return domain.Restaurant{}, err
	}
	rest.Address = address.String
	rest.Phone = phone.String
	rest.Location = location.String
	rest.Description = desc.String
	if lat.Valid && lon.Valid {
		la, lo := lat.Float64, lon.Float64
		rest.Lat, rest.Lon = &la, &lo
	}
	return rest, nil
}

func coords(l domain.Listing) (any, any) {
	if !l.HasCoords() {
		return nil, nil
	}
	return *l.Lat, *l.Lon
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
