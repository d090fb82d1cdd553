package mysql

const restaurantCols = "id, name, address, lat, lon, phone, location, description, created_at, updated_at"

const insertRestaurantSQL = `
INSERT INTO restaurants
  (name, address, lat, lon, phone, phone_digits, location, description)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

// Empty incoming values never overwrite; location and description only
// fill a blank.
const mergeRestaurantSQL = `
UPDATE restaurants SET
  name         = COALESCE(NULLIF(?, ''), name),
  address      = COALESCE(NULLIF(?, ''), address),
  lat          = COALESCE(?, lat),
  lon          = COALESCE(?, lon),
  phone        = COALESCE(NULLIF(?, ''), phone),
  phone_digits = COALESCE(NULLIF(?, ''), phone_digits),
  location     = COALESCE(NULLIF(location, ''), NULLIF(?, '')),
  description  = COALESCE(NULLIF(description, ''), NULLIF(?, '')),
  updated_at   = CURRENT_TIMESTAMP
WHERE id = ?
`

const lockRestaurantSQL = `SELECT id FROM restaurants WHERE id = ? FOR UPDATE`

const upsertExternalIDSQL = `
INSERT INTO external_ids (restaurant_id, source, provider_id)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE provider_id = VALUES(provider_id)
`

const upsertRatingSQL = `
INSERT INTO ratings (restaurant_id, source, score, review_count, fetched_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON DUPLICATE KEY UPDATE
  score        = VALUES(score),
  review_count = VALUES(review_count),
  fetched_at   = CURRENT_TIMESTAMP
`

const insertMediaSQL = `INSERT IGNORE INTO media (restaurant_id, source, url) VALUES (?, ?, ?)`

// Category names are a dictionary; the default collation makes them
// case-insensitive, so "Bakeries" and "bakeries" share one row.
const insertCategorySQL = `INSERT IGNORE INTO categories (name) VALUES (?)`

const categoryIDSQL = `SELECT id FROM categories WHERE name = ?`

const linkCategorySQL = `INSERT IGNORE INTO restaurant_categories (restaurant_id, category_id) VALUES (?, ?)`

// Note: `text` is reserved; keep it quoted everywhere.
const insertReviewsPrefix = "INSERT INTO reviews\n  (restaurant_id, source, source_review_id, author, rating, `text`, url, published_at)\nVALUES "

// COALESCE keeps the old value if the new one is NULL.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  author       = COALESCE(VALUES(author), reviews.author),\n" +
	"  rating       = COALESCE(VALUES(rating), reviews.rating),\n" +
	"  `text`       = COALESCE(VALUES(`text`), reviews.`text`),\n" +
	"  url          = COALESCE(VALUES(url), reviews.url),\n" +
	"  published_at = COALESCE(VALUES(published_at), reviews.published_at)\n"

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getRestaurantSQL = `SELECT ` + restaurantCols + ` FROM restaurants WHERE id = ?`

const findByExternalIDSQL = `
SELECT r.id, r.name, r.address, r.lat, r.lon, r.phone, r.location, r.description, r.created_at, r.updated_at
FROM external_ids e
JOIN restaurants r ON r.id = e.restaurant_id
WHERE e.source = ? AND e.provider_id = ?
`

const listExternalIDsSQL = `SELECT source, provider_id FROM external_ids WHERE restaurant_id = ? ORDER BY source`

const listRatingsSQL = `
SELECT source, score, review_count, fetched_at
FROM ratings WHERE restaurant_id = ? ORDER BY source
`

const listMediaSQL = `SELECT source, url FROM media WHERE restaurant_id = ? ORDER BY id`

const listCategoriesSQL = `
SELECT c.name
FROM restaurant_categories rc
JOIN categories c ON c.id = rc.category_id
WHERE rc.restaurant_id = ?
ORDER BY c.name`

const listByLocationSQL = `SELECT ` + restaurantCols + ` FROM restaurants WHERE location = ? ORDER BY id LIMIT ?`

const listReviewsSQL = "SELECT id, source, source_review_id, author, rating, `text`, url, published_at\n" +
	"FROM reviews WHERE restaurant_id = ?\n" +
	"ORDER BY published_at IS NULL, published_at DESC, id DESC\n" +
	"LIMIT ?"

// -----------------------------------------------------------------------------
// MATCH LOCK
// -----------------------------------------------------------------------------

const matchLockName = "restaurant_catalog:match"

const getLockSQL = `SELECT GET_LOCK(?, ?)`

const releaseLockSQL = `SELECT RELEASE_LOCK(?)`
