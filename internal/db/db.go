// Package db provides database connection handling for Karib.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// VersionQuery verifies PostGIS is available. Place proximity queries depend
// on the geography type and ST_DWithin.
const VersionQuery = "SELECT PostGIS_Version()"

// Connection pool settings tuned for a small API fleet.
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Open connects to PostgreSQL, verifies connectivity, and checks that the
// PostGIS extension is installed. The returned pool is ready for use.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pool.SetMaxOpenConns(maxOpenConns)
	pool.SetMaxIdleConns(maxIdleConns)
	pool.SetConnMaxLifetime(connMaxLifetime)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	var postgisVersion string
	if err := pool.QueryRowContext(ctx, VersionQuery).Scan(&postgisVersion); err != nil {
		pool.Close()
		return nil, fmt.Errorf("checking PostGIS (run CREATE EXTENSION IF NOT EXISTS postgis): %w", err)
	}

	return pool, nil
}
