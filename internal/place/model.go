// Package place provides the place model and repositories backing the
// nearby-places search pipeline.
package place

import (
	"errors"
	"time"

	"github.com/karibapp/karib/internal/geo"
)

// Category identifies the service vertical a place belongs to.
type Category string

// Supported place categories.
const (
	CategoryFood   Category = "food"
	CategoryHealth Category = "health"
	CategoryVet    Category = "vet"
	CategoryAdmin  Category = "admin"
)

// ErrUnknownCategory is returned when parsing an unrecognized category string.
var ErrUnknownCategory = errors.New("unknown place category")

// ParseCategory parses a category string. Returns ErrUnknownCategory for
// anything outside the supported set.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryFood, CategoryHealth, CategoryVet, CategoryAdmin:
		return Category(s), nil
	default:
		return "", ErrUnknownCategory
	}
}

// Rating bounds for aggregate place ratings.
const (
	MinRating = 0.0
	MaxRating = 5.0
)

// Price level bounds.
const (
	MinPriceLevel = 1
	MaxPriceLevel = 4
)

// Place is a searchable venue record. Coordinates are WGS84 degrees.
//
// Rating and ReviewCount are owned by the external review collaborator and
// only observed here; UpdateRating is the single write path for them.
// A place enters search results only once Verified is true and it has not
// been soft-deleted.
type Place struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      Category  `json:"category"`
	Description   string    `json:"description,omitempty"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Lat           float64   `json:"latitude"`
	Lng           float64   `json:"longitude"`
	CoarseGeohash string    `json:"coarse_geohash,omitempty"`
	IsOpen        bool      `json:"is_open"`
	Verified      bool      `json:"verified"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"review_count"`
	PriceLevel    int       `json:"price_level"`
	Tags          []string  `json:"tags,omitempty"`
	Photos        []string  `json:"photos,omitempty"`
	SubmittedBy   string    `json:"submitted_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Seq is the insertion order assigned by the repository. It is the final
	// tie-break key for result ordering, so identical queries always return
	// identical orderings.
	Seq int64 `json:"-"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Coordinate returns the place position as a geo.Coordinate.
func (p *Place) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Lng: p.Lng}
}

// Validate checks model invariants prior to persistence.
// Returns a descriptive error for the first violated invariant.
func (p *Place) Validate() error {
	if p.Name == "" {
		return errors.New("place name is required")
	}
	if _, err := ParseCategory(string(p.Category)); err != nil {
		return err
	}
	if !geo.ValidLatitude(p.Lat) {
		return errors.New("latitude out of range [-90, 90]")
	}
	if !geo.ValidLongitude(p.Lng) {
		return errors.New("longitude out of range [-180, 180]")
	}
	if p.Rating < MinRating || p.Rating > MaxRating {
		return errors.New("rating out of range [0, 5]")
	}
	if p.ReviewCount < 0 {
		return errors.New("review count cannot be negative")
	}
	if p.PriceLevel != 0 && (p.PriceLevel < MinPriceLevel || p.PriceLevel > MaxPriceLevel) {
		return errors.New("price level out of range [1, 4]")
	}
	return nil
}

// Filters narrows a FindNear candidate set.
type Filters struct {
	// Category restricts results to an exact category match when non-nil.
	Category *Category

	// OpenOnly restricts results to currently-open places when true.
	OpenOnly bool
}
