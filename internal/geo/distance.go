// Package geo provides geolocation utilities: great-circle distance,
// coordinate validation, and geohash encoding for coarse location handling.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
const EarthRadiusMeters = 6371000.0

// Coordinate is a geographic position in WGS84 degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidLatitude reports whether lat is within [-90, 90].
func ValidLatitude(lat float64) bool {
	return lat >= -90.0 && lat <= 90.0
}

// ValidLongitude reports whether lng is within [-180, 180].
func ValidLongitude(lng float64) bool {
	return lng >= -180.0 && lng <= 180.0
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return ValidLatitude(c.Lat) && ValidLongitude(c.Lng)
}

// Distance computes the great-circle distance in meters between a and b
// using the haversine formula.
//
// The function is symmetric (Distance(a, b) == Distance(b, a)) and returns
// exactly zero when a == b. Angular differences are taken as absolute values
// before the half-angle terms so that coordinates straddling the antimeridian
// or near the poles do not produce sign errors.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := math.Abs(radians(b.Lat - a.Lat))
	dLng := math.Abs(radians(b.Lng - a.Lng))

	// Shortest way around for longitude differences past the antimeridian.
	if dLng > math.Pi {
		dLng = 2*math.Pi - dLng
	}

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// radians converts degrees to radians.
func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
