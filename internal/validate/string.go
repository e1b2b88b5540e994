// Package validate provides input validation and sanitization for
// user-supplied text reaching the Karib API. Parameterized queries remain
// the primary defense; this layer normalizes and rejects garbage early.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors.
var (
	ErrEmpty             = errors.New("string is empty")
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length in runes (0 = no minimum)
	MaxLength      int            // Maximum length in runes (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex the whole string must match
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if
// validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: minimum length is %d", ErrStringTooShort, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: maximum length is %d", ErrStringTooLong, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", ErrInvalidCharacters
	}

	return s, nil
}

// Place name constraints.
const (
	MinPlaceNameLength = 2
	MaxPlaceNameLength = 120
)

// placeNamePattern allows letters (including Arabic and accented Latin),
// numbers, spaces, and limited punctuation.
var placeNamePattern = regexp.MustCompile(`^[\p{L}\p{N}\s\-_'.&()]+$`)

// PlaceName validates and sanitizes an ambassador-submitted place name.
// The returned name is trimmed and HTML-escaped, safe to store and echo back.
func PlaceName(name string) (string, error) {
	validated, err := String(name, StringConstraints{
		MinLength:      MinPlaceNameLength,
		MaxLength:      MaxPlaceNameLength,
		AllowedPattern: placeNamePattern,
		TrimSpace:      true,
	})
	if err != nil {
		return "", err
	}
	return html.EscapeString(validated), nil
}
