package warehouse

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
)

// deleteFactsSQL clears the day's partition so the insert can be rerun.
const deleteFactsSQL = `
DELETE FROM fact_events WHERE date_key = $1::DATE`

// insertFactsSQL resolves surrogate keys through inner joins. Raw rows
// whose user, product or date is missing from the dimensions are dropped.
const insertFactsSQL = `
INSERT INTO fact_events (
    event_time, user_key, product_key, date_key,
    event_type, price, user_session
)
SELECT
    raw.event_time,
    u.user_key,
    p.product_key,
    d.date_key,
    raw.event_type,
    raw.price,
    raw.user_session
FROM raw_ecommerce_events raw
INNER JOIN dim_users u ON raw.user_id = u.user_id
INNER JOIN dim_products p ON raw.product_id = p.product_id
INNER JOIN dim_dates d ON raw.event_time::DATE = d.date_key
WHERE raw.event_time >= $1::TIMESTAMP
  AND raw.event_time < $2::TIMESTAMP
ORDER BY raw.event_time`

// FactLoad reports what LoadFacts changed.
type FactLoad struct {
	Deleted  int64
	Inserted int64
}

// LoadFacts replaces the day's fact partition in a single transaction:
// readers see either the old partition or the new one, never an empty one.
func LoadFacts(ctx context.Context, conn db.DB, day pipeline.Day) (FactLoad, error) {
	var res FactLoad

	tx, err := conn.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to begin fact load for %s: %w", day, err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, deleteFactsSQL, day.Start())
	if err != nil {
		return res, fmt.Errorf("failed to clear %s partition %s: %w", TableFacts, day, err)
	}
	res.Deleted = tag.RowsAffected()

	tag, err = tx.Exec(ctx, insertFactsSQL, day.Start(), day.End())
	if err != nil {
		return res, fmt.Errorf("failed to insert %s partition %s: %w", TableFacts, day, err)
	}
	res.Inserted = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return FactLoad{}, fmt.Errorf("failed to commit fact load for %s: %w", day, err)
	}

	logging.Debug().
		Str("logical_date", day.String()).
		Int64("deleted", res.Deleted).
		Int64("inserted", res.Inserted).
		Msg("Fact partition replaced")

	return res, nil
}

// PartitionSize returns the number of fact rows for the day.
func PartitionSize(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error) {
	var n int64
	err := conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM fact_events WHERE date_key = $1::DATE", day.Start()).Scan(&n)
	return n, err
}
