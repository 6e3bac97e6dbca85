package warehouse

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
)

// loadUsersSQL appends the users seen during the day. Existing users keep
// their surrogate key.
const loadUsersSQL = `
INSERT INTO dim_users (user_id)
SELECT DISTINCT user_id
FROM raw_ecommerce_events
WHERE event_time >= $1::TIMESTAMP
  AND event_time < $2::TIMESTAMP
  AND user_id IS NOT NULL
ON CONFLICT (user_id) DO NOTHING`

// loadProductsSQL upserts one row per product using its latest event of
// the day. Ties on event_time are broken on the attribute values so reruns
// pick the same row.
const loadProductsSQL = `
INSERT INTO dim_products (product_id, category_code, brand)
SELECT DISTINCT ON (product_id)
    product_id, category_code, brand
FROM raw_ecommerce_events
WHERE event_time >= $1::TIMESTAMP
  AND event_time < $2::TIMESTAMP
  AND product_id IS NOT NULL
ORDER BY product_id, event_time DESC,
         category_code DESC NULLS LAST, brand DESC NULLS LAST
ON CONFLICT (product_id) DO UPDATE
SET category_code = EXCLUDED.category_code,
    brand = EXCLUDED.brand`

// loadDatesSQL adds the calendar row for the day.
const loadDatesSQL = `
INSERT INTO dim_dates (date_key, year, month, day, is_weekend)
SELECT
    $1::DATE,
    EXTRACT(YEAR FROM $1::DATE),
    EXTRACT(MONTH FROM $1::DATE),
    EXTRACT(DAY FROM $1::DATE),
    EXTRACT(DOW FROM $1::DATE) IN (0, 6)
ON CONFLICT (date_key) DO NOTHING`

// LoadUsers inserts the day's new users and returns how many were added.
func LoadUsers(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error) {
	tag, err := conn.Exec(ctx, loadUsersSQL, day.Start(), day.End())
	if err != nil {
		return 0, fmt.Errorf("failed to load %s for %s: %w", TableUsers, day, err)
	}
	return tag.RowsAffected(), nil
}

// LoadProducts upserts the day's products and returns how many rows were
// inserted or updated.
func LoadProducts(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error) {
	tag, err := conn.Exec(ctx, loadProductsSQL, day.Start(), day.End())
	if err != nil {
		return 0, fmt.Errorf("failed to load %s for %s: %w", TableProducts, day, err)
	}
	return tag.RowsAffected(), nil
}

// LoadDates inserts the day's calendar row; it returns 0 if it existed.
func LoadDates(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error) {
	tag, err := conn.Exec(ctx, loadDatesSQL, day.Start())
	if err != nil {
		return 0, fmt.Errorf("failed to load %s for %s: %w", TableDates, day, err)
	}
	return tag.RowsAffected(), nil
}
