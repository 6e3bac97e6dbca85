// Package warehouse implements the star schema and the SQL steps that load
// one day of raw clickstream into it.
package warehouse

import (
	"context"

	"github.com/pgEdge/pgedge-starload/internal/db"
)

// Table names.
const (
	TableRawEvents = "raw_ecommerce_events"
	TableUsers     = "dim_users"
	TableProducts  = "dim_products"
	TableDates     = "dim_dates"
	TableFacts     = "fact_events"
)

// createSchemaSQL creates the warehouse tables and the partition index.
// Every statement is idempotent; the raw staging table is not touched.
const createSchemaSQL = `
-- Users: surrogate key for the natural user id
CREATE TABLE IF NOT EXISTS dim_users (
    user_key    SERIAL PRIMARY KEY,
    user_id     INTEGER UNIQUE NOT NULL
);

-- Products: descriptive attributes are overwritten by the latest event
CREATE TABLE IF NOT EXISTS dim_products (
    product_key     SERIAL PRIMARY KEY,
    product_id      INTEGER UNIQUE NOT NULL,
    category_code   VARCHAR(255),
    brand           VARCHAR(255)
);

-- Dates: one row per calendar day
CREATE TABLE IF NOT EXISTS dim_dates (
    date_key    DATE PRIMARY KEY,
    year        INT,
    month       INT,
    day         INT,
    is_weekend  BOOLEAN
);

-- Facts: one row per raw event
CREATE TABLE IF NOT EXISTS fact_events (
    event_id        BIGSERIAL PRIMARY KEY,
    event_time      TIMESTAMP,
    user_key        INTEGER REFERENCES dim_users(user_key),
    product_key     INTEGER REFERENCES dim_products(product_key),
    date_key        DATE REFERENCES dim_dates(date_key),
    event_type      VARCHAR(50),
    price           NUMERIC(10, 2),
    user_session    VARCHAR(100)
);

-- Partition lookups for the daily delete-then-insert
CREATE INDEX IF NOT EXISTS idx_fact_date ON fact_events(date_key);
`

// Drop schema SQL
const dropSchemaSQL = `
DROP TABLE IF EXISTS fact_events CASCADE;
DROP TABLE IF EXISTS dim_dates CASCADE;
DROP TABLE IF EXISTS dim_products CASCADE;
DROP TABLE IF EXISTS dim_users CASCADE;
`

// CreateSchema creates the warehouse tables and index if they are absent.
func CreateSchema(ctx context.Context, conn db.DB) error {
	_, err := conn.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops the warehouse tables. Raw data is kept.
func DropSchema(ctx context.Context, conn db.DB) error {
	_, err := conn.Exec(ctx, dropSchemaSQL)
	return err
}
