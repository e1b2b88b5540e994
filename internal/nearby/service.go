// Package nearby implements the nearby-places query pipeline: input
// validation, points-gated radius clamping, candidate retrieval, distance
// ranking, and pagination.
package nearby

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/karibapp/karib/internal/geo"
	"github.com/karibapp/karib/internal/place"
	"github.com/karibapp/karib/internal/radius"
)

// Radius and page bounds for search queries, pre-clamp.
const (
	MinRadiusMeters = 100.0
	MaxRadiusMeters = 50000.0

	DefaultRadiusMeters = 1000.0
	DefaultLimit        = 20
	MaxLimit            = 100
)

// DefaultRepositoryTimeout bounds the single repository round-trip per query.
const DefaultRepositoryTimeout = 5 * time.Second

// SearchQuery is the ephemeral value object describing one nearby search.
type SearchQuery struct {
	Origin       geo.Coordinate
	RadiusMeters float64
	Category     *place.Category
	OpenOnly     bool
	Limit        int
	Offset       int
}

// Validate checks the query shape against its invariants. Out-of-range
// values fail with a ValidationError naming the field; shape problems are
// never silently clamped (the radius-tier cap in Query is the one deliberate
// clamp, and it applies only to well-formed radii).
func (q SearchQuery) Validate() error {
	if !geo.ValidLatitude(q.Origin.Lat) {
		return &ValidationError{Field: "lat", Message: "must be within [-90, 90]"}
	}
	if !geo.ValidLongitude(q.Origin.Lng) {
		return &ValidationError{Field: "lng", Message: "must be within [-180, 180]"}
	}
	// NaN compares false against both bounds and would slip through the
	// range check, then poison the tier clamp and every distance comparison.
	if math.IsNaN(q.RadiusMeters) || q.RadiusMeters < MinRadiusMeters || q.RadiusMeters > MaxRadiusMeters {
		return &ValidationError{Field: "radius", Message: "must be within [100, 50000] meters"}
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return &ValidationError{Field: "limit", Message: "must be within [1, 100]"}
	}
	if q.Offset < 0 {
		return &ValidationError{Field: "offset", Message: "must be non-negative"}
	}
	return nil
}

// RankedPlace is a place with its computed great-circle distance from the
// query origin.
type RankedPlace struct {
	*place.Place
	DistanceMeters float64
}

// Page is one page of ranked results plus pre-pagination metadata.
type Page struct {
	Results []RankedPlace

	// Total is the full filtered candidate count before pagination, so a
	// client can render "showing X of Y" regardless of limit and offset.
	Total  int
	Limit  int
	Offset int

	// EffectiveRadius is the radius actually searched after the unlock cap.
	EffectiveRadius float64
}

// Service composes the place repository, the distance engine, and the
// radius-unlock policy into the stateless query pipeline. Concurrent calls
// need no coordination: every invocation is an independent read.
type Service struct {
	places      place.Repository
	repoTimeout time.Duration
}

// NewService creates a nearby query service over the given repository.
func NewService(places place.Repository) *Service {
	return &Service{places: places, repoTimeout: DefaultRepositoryTimeout}
}

// NewServiceWithTimeout creates a service with a custom repository deadline.
// A non-positive timeout disables the deadline.
func NewServiceWithTimeout(places place.Repository, timeout time.Duration) *Service {
	return &Service{places: places, repoTimeout: timeout}
}

// Query runs one nearby search for a user with the given points total.
//
// The requested radius is capped at the tier the points unlock: asking for
// less than the unlocked radius is always allowed, asking for more silently
// caps rather than rejects, so clients need not track the user's tier.
// Negative points are invalid input and surface as a ValidationError on
// "points". Repository failures and deadline expiry surface as a
// DependencyError; an empty candidate set is a successful empty page.
func (s *Service) Query(ctx context.Context, q SearchQuery, userPoints int64) (*Page, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	allowed, err := radius.AllowedRadius(userPoints)
	if err != nil {
		return nil, &ValidationError{Field: "points", Message: err.Error()}
	}
	effective := math.Min(q.RadiusMeters, allowed)

	repoCtx := ctx
	if s.repoTimeout > 0 {
		var cancel context.CancelFunc
		repoCtx, cancel = context.WithTimeout(ctx, s.repoTimeout)
		defer cancel()
	}

	filters := place.Filters{Category: q.Category, OpenOnly: q.OpenOnly}
	candidates, err := s.places.FindNear(repoCtx, q.Origin, effective, filters)
	if err != nil {
		return nil, &DependencyError{Err: err}
	}

	ranked := make([]RankedPlace, 0, len(candidates))
	for _, p := range candidates {
		d := geo.Distance(q.Origin, p.Coordinate())
		// The repository prefilter may use a slightly different geodesic
		// model; the haversine distance is authoritative for the response.
		if d > effective {
			continue
		}
		ranked = append(ranked, RankedPlace{Place: p, DistanceMeters: d})
	}

	// Distance ascending, then rating descending, then insertion order.
	// The final key makes repeated identical queries byte-identical.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].DistanceMeters != ranked[j].DistanceMeters {
			return ranked[i].DistanceMeters < ranked[j].DistanceMeters
		}
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		return ranked[i].Seq < ranked[j].Seq
	})

	total := len(ranked)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return &Page{
		Results:         ranked[start:end],
		Total:           total,
		Limit:           q.Limit,
		Offset:          q.Offset,
		EffectiveRadius: effective,
	}, nil
}
