// Package radius maps a user's accumulated points to the search radius their
// tier unlocks. The tiers are fixed gamification breakpoints, not a formula.
package radius

import "errors"

// Unlimited is the sentinel radius (meters) for the top tier. Large enough to
// cover any reachable query radius while staying finite for computation.
const Unlimited = 10_000_000.0

// ErrNegativePoints is returned when a points total below zero is supplied.
// Negative totals cannot occur through the ledger and indicate caller error.
var ErrNegativePoints = errors.New("points total cannot be negative")

// Tier is a single unlock breakpoint: reaching MinPoints unlocks Meters.
type Tier struct {
	MinPoints int64
	Meters    float64
}

// Tiers holds the unlock breakpoints in ascending order of MinPoints.
// The zero-points tier is always present, so every valid total maps to a tier.
var Tiers = []Tier{
	{MinPoints: 0, Meters: 500},
	{MinPoints: 50, Meters: 1000},
	{MinPoints: 150, Meters: 2000},
	{MinPoints: 500, Meters: 5000},
	{MinPoints: 1000, Meters: Unlimited},
}

// AllowedRadius returns the radius in meters of the highest tier whose
// threshold the points total meets or exceeds. Zero points returns the first
// tier; negative points return ErrNegativePoints.
func AllowedRadius(points int64) (float64, error) {
	if points < 0 {
		return 0, ErrNegativePoints
	}

	allowed := Tiers[0].Meters
	for _, t := range Tiers {
		if points >= t.MinPoints {
			allowed = t.Meters
		}
	}
	return allowed, nil
}
