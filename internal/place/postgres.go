package place

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/karibapp/karib/internal/geo"
	"github.com/karibapp/karib/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL with PostGIS.
// It is the single persistence layer behind the place search path; proximity
// filtering runs in SQL via ST_DWithin over a geography column while final
// ranking stays with the query service.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

const placeColumns = `
	id, name, category, description, address, phone,
	ST_Y(location::geometry), ST_X(location::geometry),
	coarse_geohash, is_open, verified, rating, review_count, price_level,
	tags, photos, submitted_by, created_at, seq`

// Insert stores a new place. A missing ID gets a generated UUID; Seq comes
// from the table's identity column and CreatedAt from the database clock.
func (r *PostgresRepository) Insert(ctx context.Context, p *Place) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CoarseGeohash == "" {
		p.CoarseGeohash = geo.EncodeGeohash(p.Coordinate(), geo.DefaultGeohashPrecision)
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationInsert)
	query := `
		INSERT INTO places (
			id, name, category, description, address, phone, location,
			coarse_geohash, is_open, verified, rating, review_count,
			price_level, tags, photos, submitted_by
		)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			ST_SetSRID(ST_MakePoint($7, $8), 4326)::geography,
			$9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		RETURNING created_at, seq`

	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.Name, string(p.Category), p.Description, p.Address, p.Phone,
		p.Lng, p.Lat,
		p.CoarseGeohash, p.IsOpen, p.Verified, p.Rating, p.ReviewCount,
		p.PriceLevel, pq.Array(p.Tags), pq.Array(p.Photos), nullString(p.SubmittedBy),
	).Scan(&p.CreatedAt, &p.Seq)
	endSpan(err)
	if err != nil {
		r.logger.Error("failed to insert place", "error", err, "place_id", p.ID)
		return fmt.Errorf("%w: insert failed: %v", ErrUnavailable, err)
	}
	return nil
}

// GetByID retrieves a place by ID, excluding soft-deleted places.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Place, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationQuery)
	query := `SELECT ` + placeColumns + `
		FROM places
		WHERE id = $1 AND deleted_at IS NULL`

	p, err := scanPlace(r.db.QueryRowContext(ctx, query, id))
	endSpan(err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get failed: %v", ErrUnavailable, err)
	}
	return p, nil
}

// SetVerified flips the moderation flag on a place.
func (r *PostgresRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationUpdate)
	res, err := r.db.ExecContext(ctx,
		`UPDATE places SET verified = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, verified)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("%w: verify update failed: %v", ErrUnavailable, err)
	}
	return requireRow(res)
}

// UpdateRating replaces the aggregate rating and review count.
func (r *PostgresRepository) UpdateRating(ctx context.Context, id string, rating float64, reviewCount int) error {
	if rating < MinRating || rating > MaxRating {
		return errors.New("rating out of range [0, 5]")
	}
	if reviewCount < 0 {
		return errors.New("review count cannot be negative")
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationUpdate)
	res, err := r.db.ExecContext(ctx,
		`UPDATE places SET rating = $2, review_count = $3 WHERE id = $1 AND deleted_at IS NULL`,
		id, rating, reviewCount)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("%w: rating update failed: %v", ErrUnavailable, err)
	}
	return requireRow(res)
}

// Delete soft-deletes a place.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationUpdate)
	res, err := r.db.ExecContext(ctx,
		`UPDATE places SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("%w: delete failed: %v", ErrUnavailable, err)
	}
	return requireRow(res)
}

// FindNear returns verified, non-deleted places within radiusMeters of
// origin. ST_DWithin on the geography column uses geodesic distance in
// meters, so the SQL prefilter matches the haversine pass the query service
// applies afterwards (within the two formulas' tolerance; the service
// re-checks the radius on its own computed distances).
func (r *PostgresRepository) FindNear(ctx context.Context, origin geo.Coordinate, radiusMeters float64, f Filters) ([]*Place, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationQuery)

	query := `SELECT ` + placeColumns + `
		FROM places
		WHERE deleted_at IS NULL
		  AND verified = TRUE
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)`
	args := []any{origin.Lng, origin.Lat, radiusMeters}

	if f.Category != nil {
		args = append(args, string(*f.Category))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.OpenOnly {
		query += " AND is_open = TRUE"
	}
	query += " ORDER BY seq"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		endSpan(err)
		r.logger.Error("nearby query failed", "error", err)
		return nil, fmt.Errorf("%w: nearby query failed: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	out := make([]*Place, 0)
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			endSpan(err)
			return nil, fmt.Errorf("%w: scan failed: %v", ErrUnavailable, err)
		}
		out = append(out, p)
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("%w: row iteration failed: %v", ErrUnavailable, err)
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(row rowScanner) (*Place, error) {
	var p Place
	var description, address, phone, geohash sql.NullString
	var submittedBy sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &description, &address, &phone,
		&p.Lat, &p.Lng,
		&geohash, &p.IsOpen, &p.Verified, &p.Rating, &p.ReviewCount, &p.PriceLevel,
		pq.Array(&p.Tags), pq.Array(&p.Photos), &submittedBy, &p.CreatedAt, &p.Seq,
	)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Address = address.String
	p.Phone = phone.String
	p.CoarseGeohash = geohash.String
	p.SubmittedBy = submittedBy.String
	return &p, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
