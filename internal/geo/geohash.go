package geo

import "strings"

// DefaultGeohashPrecision is the geohash length stored on place records.
// Six characters is roughly a 1.2km x 0.6km cell, coarse enough for map
// clustering without pinpointing an exact storefront.
const DefaultGeohashPrecision = 6

// base32 is the geohash base32 alphabet (excludes 'a', 'i', 'l', 'o').
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// validGeohashChars is a lookup set for the geohash base32 alphabet.
var validGeohashChars = map[rune]bool{
	'0': true, '1': true, '2': true, '3': true, '4': true,
	'5': true, '6': true, '7': true, '8': true, '9': true,
	'b': true, 'c': true, 'd': true, 'e': true, 'f': true,
	'g': true, 'h': true, 'j': true, 'k': true, 'm': true,
	'n': true, 'p': true, 'q': true, 'r': true, 's': true,
	't': true, 'u': true, 'v': true, 'w': true, 'x': true,
	'y': true, 'z': true,
}

// EncodeGeohash encodes a coordinate into a geohash string of the given
// precision using the standard interleaved base32 algorithm. A precision
// below 1 falls back to DefaultGeohashPrecision.
func EncodeGeohash(c Coordinate, precision int) string {
	if precision < 1 {
		precision = DefaultGeohashPrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var out strings.Builder
	out.Grow(precision)

	bits := 0
	var ch uint

	even := true
	for out.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if c.Lng > mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if c.Lat > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++

		if bits == 5 {
			out.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return out.String()
}

// TruncateGeohash normalizes and truncates a geohash to the given precision.
// Returns the empty string if the input is empty, contains characters outside
// the geohash alphabet, or precision is less than 1. Inputs shorter than the
// precision are returned lowercased and unchanged.
func TruncateGeohash(input string, precision int) string {
	if input == "" || precision < 1 {
		return ""
	}

	lower := strings.ToLower(input)
	for _, c := range lower {
		if !validGeohashChars[c] {
			return ""
		}
	}

	if len(lower) <= precision {
		return lower
	}
	return lower[:precision]
}
