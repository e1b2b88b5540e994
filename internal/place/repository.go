package place

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karibapp/karib/internal/geo"
)

// Common errors for place operations.
var (
	// ErrNotFound is returned when a place does not exist or is soft-deleted.
	ErrNotFound = errors.New("place not found")

	// ErrUnavailable signals that the storage backend could not be reached.
	// Callers surface this as a dependency failure, never as an empty result.
	ErrUnavailable = errors.New("place store unavailable")
)

// Repository defines storage operations for places.
//
// FindNear returns the unordered candidate set of verified, non-deleted
// places within radiusMeters of origin, with filters applied. Ranking and
// pagination are deliberately the caller's job: distance computation stays
// centralized in the query service, and paginating a pre-filter set would
// return short pages whenever filtering narrows the pool.
type Repository interface {
	// Insert stores a new place, assigning ID, Seq, CreatedAt, and a coarse
	// geohash when absent.
	Insert(ctx context.Context, p *Place) error

	// GetByID retrieves a place by ID, excluding soft-deleted places.
	GetByID(ctx context.Context, id string) (*Place, error)

	// SetVerified flips the moderation flag. Unverified places never appear
	// in FindNear results.
	SetVerified(ctx context.Context, id string, verified bool) error

	// UpdateRating replaces the aggregate rating and review count. Called by
	// the review collaborator whenever a review is added, removed, or changed.
	UpdateRating(ctx context.Context, id string, rating float64, reviewCount int) error

	// FindNear returns verified, non-deleted places whose great-circle
	// distance from origin is at most radiusMeters, filtered but unordered.
	// An empty candidate set is a successful empty slice, not an error.
	FindNear(ctx context.Context, origin geo.Coordinate, radiusMeters float64, f Filters) ([]*Place, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for tests, development, and running without a database.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	places  map[string]*Place
	nextSeq int64
}

// NewInMemoryRepository creates a new in-memory place repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{places: make(map[string]*Place)}
}

// Insert stores a new place. A missing ID gets a generated UUID; Seq and
// CreatedAt are always assigned here.
func (r *InMemoryRepository) Insert(ctx context.Context, p *Place) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.CoarseGeohash == "" {
		p.CoarseGeohash = geo.EncodeGeohash(p.Coordinate(), geo.DefaultGeohashPrecision)
	}
	r.nextSeq++
	p.Seq = r.nextSeq

	cp := copyPlace(p)
	r.places[cp.ID] = cp
	return nil
}

// GetByID retrieves a place by ID, excluding soft-deleted places.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Place, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.places[id]
	if !ok || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return copyPlace(p), nil
}

// SetVerified flips the moderation flag on a place.
func (r *InMemoryRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.places[id]
	if !ok || p.DeletedAt != nil {
		return ErrNotFound
	}
	p.Verified = verified
	return nil
}

// UpdateRating replaces the aggregate rating and review count.
func (r *InMemoryRepository) UpdateRating(ctx context.Context, id string, rating float64, reviewCount int) error {
	if rating < MinRating || rating > MaxRating {
		return errors.New("rating out of range [0, 5]")
	}
	if reviewCount < 0 {
		return errors.New("review count cannot be negative")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.places[id]
	if !ok || p.DeletedAt != nil {
		return ErrNotFound
	}
	p.Rating = rating
	p.ReviewCount = reviewCount
	return nil
}

// Delete soft-deletes a place so it no longer appears in reads or search.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.places[id]
	if !ok || p.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	return nil
}

// FindNear scans all verified, non-deleted places and keeps those within
// radiusMeters of origin after filtering. The result is returned in stable
// insertion order but callers must not rely on it; ranking belongs to the
// query service.
func (r *InMemoryRepository) FindNear(ctx context.Context, origin geo.Coordinate, radiusMeters float64, f Filters) ([]*Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Place, 0)
	for _, p := range r.places {
		if p.DeletedAt != nil || !p.Verified {
			continue
		}
		if f.Category != nil && p.Category != *f.Category {
			continue
		}
		if f.OpenOnly && !p.IsOpen {
			continue
		}
		if geo.Distance(origin, p.Coordinate()) > radiusMeters {
			continue
		}
		out = append(out, copyPlace(p))
	}

	// Stable storage order keeps repeated scans reproducible even though the
	// contract leaves ordering to the caller.
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// copyPlace deep-copies a place so callers cannot mutate stored state.
func copyPlace(p *Place) *Place {
	cp := *p
	if p.Tags != nil {
		cp.Tags = append([]string(nil), p.Tags...)
	}
	if p.Photos != nil {
		cp.Photos = append([]string(nil), p.Photos...)
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}
