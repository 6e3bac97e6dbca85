package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
)

// createStagingSQL creates the raw landing table for local environments.
// In production the table is owned by the ingestion job.
const createStagingSQL = `
CREATE TABLE IF NOT EXISTS raw_ecommerce_events (
    event_time      TIMESTAMP NOT NULL,
    event_type      VARCHAR(50),
    product_id      INTEGER,
    category_code   VARCHAR(255),
    brand           VARCHAR(255),
    price           NUMERIC(10, 2),
    user_id         INTEGER,
    user_session    VARCHAR(100)
);

CREATE INDEX IF NOT EXISTS idx_raw_event_time ON raw_ecommerce_events(event_time);
`

// rawColumns is the COPY column order of RawEvent.Values.
var rawColumns = []string{
	"event_time", "event_type", "product_id", "category_code",
	"brand", "price", "user_id", "user_session",
}

// RawEvent is one clickstream row of the staging table. Nil pointers are
// written as NULL.
type RawEvent struct {
	EventTime    time.Time
	EventType    string
	ProductID    *int32
	CategoryCode *string
	Brand        *string
	Price        *float64
	UserID       *int32
	UserSession  *string
}

// Values returns the row in rawColumns order.
func (e RawEvent) Values() []any {
	return []any{
		e.EventTime, e.EventType, e.ProductID, e.CategoryCode,
		e.Brand, e.Price, e.UserID, e.UserSession,
	}
}

// Copier is implemented by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CreateStagingTable creates the raw table if it does not exist.
func CreateStagingTable(ctx context.Context, conn db.DB) error {
	_, err := conn.Exec(ctx, createStagingSQL)
	return err
}

// DropStagingTable drops the raw table.
func DropStagingTable(ctx context.Context, conn db.DB) error {
	_, err := conn.Exec(ctx, "DROP TABLE IF EXISTS raw_ecommerce_events")
	return err
}

// CopyRawEvents bulk-loads events with COPY and returns the row count.
func CopyRawEvents(ctx context.Context, conn Copier, events []RawEvent) (int64, error) {
	n, err := conn.CopyFrom(ctx,
		pgx.Identifier{TableRawEvents},
		rawColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			return events[i].Values(), nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("failed to copy into %s: %w", TableRawEvents, err)
	}
	return n, nil
}

// DeleteRawDay removes the raw rows of a day so it can be reseeded.
func DeleteRawDay(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error) {
	tag, err := conn.Exec(ctx, `
        DELETE FROM raw_ecommerce_events
        WHERE event_time >= $1::TIMESTAMP AND event_time < $2::TIMESTAMP
    `, day.Start(), day.End())
	if err != nil {
		return 0, fmt.Errorf("failed to clear raw rows for %s: %w", day, err)
	}
	return tag.RowsAffected(), nil
}

// CountRawDay returns the number of raw rows in the day.
func CountRawDay(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error) {
	var n int64
	err := conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM raw_ecommerce_events
        WHERE event_time >= $1::TIMESTAMP AND event_time < $2::TIMESTAMP
    `, day.Start(), day.End()).Scan(&n)
	return n, err
}
