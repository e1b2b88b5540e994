//go:build integration

// Integration tests for the PostGIS-backed place repository.
// Run with: go test -tags=integration -v ./internal/place/...
//
// The test starts a disposable PostGIS container via testcontainers. Set
// KARIB_TEST_DATABASE_URL to reuse an existing database instead.
package place

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/karibapp/karib/internal/geo"
)

const placesSchema = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE TABLE IF NOT EXISTS places (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	category      TEXT NOT NULL,
	description   TEXT,
	address       TEXT,
	phone         TEXT,
	location      GEOGRAPHY(POINT, 4326) NOT NULL,
	coarse_geohash TEXT,
	is_open       BOOLEAN NOT NULL DEFAULT FALSE,
	verified      BOOLEAN NOT NULL DEFAULT FALSE,
	rating        NUMERIC(2,1) NOT NULL DEFAULT 0,
	review_count  INTEGER NOT NULL DEFAULT 0,
	price_level   INTEGER NOT NULL DEFAULT 0,
	tags          TEXT[] NOT NULL DEFAULT '{}',
	photos        TEXT[] NOT NULL DEFAULT '{}',
	submitted_by  TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	seq           BIGINT GENERATED ALWAYS AS IDENTITY,
	deleted_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS places_location_idx ON places USING GIST (location);`

// openTestDB returns a connection to a PostGIS-enabled database, starting a
// container unless KARIB_TEST_DATABASE_URL points at one already.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("KARIB_TEST_DATABASE_URL")
	if dsn == "" {
		container, err := tcpostgres.Run(ctx, "postgis/postgis:16-3.4",
			tcpostgres.WithDatabase("karib_test"),
			tcpostgres.WithUsername("karib"),
			tcpostgres.WithPassword("karib"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("failed to start postgis container: %v", err)
		}
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(container); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})
		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to get connection string: %v", err)
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}
	if _, err := db.ExecContext(ctx, placesSchema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE places"); err != nil {
		t.Fatalf("failed to truncate places: %v", err)
	}
	return db
}

func TestPostgresRepository_InsertAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresRepository(db, nil)
	ctx := context.Background()

	p := &Place{
		Name:        "Cafe de la Corniche",
		Category:    CategoryFood,
		Description: "seafront cafe",
		Address:     "Blvd de la Corniche",
		Phone:       "+212 522 000000",
		Lat:         33.5948,
		Lng:         -7.6629,
		IsOpen:      true,
		Verified:    true,
		Rating:      4.3,
		ReviewCount: 27,
		PriceLevel:  2,
		Tags:        []string{"terrace", "sea-view"},
		Photos:      []string{"photos/corniche-1.jpg"},
		SubmittedBy: "user-amb-1",
	}
	if err := repo.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if p.Seq == 0 || p.CreatedAt.IsZero() {
		t.Errorf("Insert did not populate seq/created_at: seq=%d created_at=%v", p.Seq, p.CreatedAt)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != p.Name || got.Category != p.Category || got.Address != p.Address {
		t.Errorf("GetByID = %+v, want %+v", got, p)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "terrace" {
		t.Errorf("tags round-trip = %v, want %v", got.Tags, p.Tags)
	}
	// Geography round-trip keeps coordinates within a centimeter.
	if d := geo.Distance(got.Coordinate(), p.Coordinate()); d > 0.01 {
		t.Errorf("coordinates drifted %vm in round-trip", d)
	}
}

func TestPostgresRepository_FindNear(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresRepository(db, nil)
	ctx := context.Background()
	center := geo.Coordinate{Lat: 33.5731, Lng: -7.5898}

	seed := []*Place{
		{Name: "near food open", Category: CategoryFood, Lat: center.Lat + 0.001, Lng: center.Lng, IsOpen: true, Verified: true, Rating: 4.0},
		{Name: "near food closed", Category: CategoryFood, Lat: center.Lat + 0.002, Lng: center.Lng, IsOpen: false, Verified: true, Rating: 4.5},
		{Name: "near health", Category: CategoryHealth, Lat: center.Lat - 0.001, Lng: center.Lng, IsOpen: true, Verified: true, Rating: 3.5},
		{Name: "near unverified", Category: CategoryFood, Lat: center.Lat + 0.001, Lng: center.Lng, IsOpen: true, Verified: false},
		{Name: "far food", Category: CategoryFood, Lat: center.Lat + 0.05, Lng: center.Lng, IsOpen: true, Verified: true, Rating: 4.9},
	}
	for _, p := range seed {
		if err := repo.Insert(ctx, p); err != nil {
			t.Fatalf("Insert(%s) failed: %v", p.Name, err)
		}
	}

	found, err := repo.FindNear(ctx, center, 1000, Filters{})
	if err != nil {
		t.Fatalf("FindNear failed: %v", err)
	}
	if len(found) != 3 {
		t.Errorf("FindNear(1km) returned %d places, want 3 (verified within radius)", len(found))
	}

	cat := CategoryFood
	found, err = repo.FindNear(ctx, center, 1000, Filters{Category: &cat, OpenOnly: true})
	if err != nil {
		t.Fatalf("FindNear failed: %v", err)
	}
	if len(found) != 1 || found[0].Name != "near food open" {
		t.Errorf("FindNear(food, open) returned %d places, want only 'near food open'", len(found))
	}
}

func TestPostgresRepository_SoftDeleteAndRating(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresRepository(db, nil)
	ctx := context.Background()

	p := &Place{
		Name: "short-lived snack", Category: CategoryFood,
		Lat: 33.57, Lng: -7.59, IsOpen: true, Verified: true,
	}
	if err := repo.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.UpdateRating(ctx, p.ID, 4.8, 9); err != nil {
		t.Fatalf("UpdateRating failed: %v", err)
	}
	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Rating != 4.8 || got.ReviewCount != 9 {
		t.Errorf("rating = (%v, %d), want (4.8, 9)", got.Rating, got.ReviewCount)
	}

	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, p.ID); err == nil {
		t.Error("GetByID succeeded after soft delete")
	}
	found, err := repo.FindNear(ctx, geo.Coordinate{Lat: 33.57, Lng: -7.59}, 1000, Filters{})
	if err != nil {
		t.Fatalf("FindNear failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("FindNear returned %d places after delete, want 0", len(found))
	}
}
