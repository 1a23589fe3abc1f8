package validation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrCityQueryFormat is returned when the city parameter has no "name,country" separator.
	ErrCityQueryFormat = errors.New("city must be in the form name,country")
	// ErrCityNameEmpty is returned when the name part is empty after trim.
	ErrCityNameEmpty = errors.New("city name is required")
	// ErrCityQueryTooLong is returned when the query exceeds the maximum length in runes.
	ErrCityQueryTooLong = errors.New("city query too long")
	// ErrCityQueryInvalidChars is returned when the query contains disallowed characters.
	ErrCityQueryInvalidChars = errors.New("city query contains invalid characters")
)

// DefaultMaxCityQueryLen bounds the combined "name,country" input.
const DefaultMaxCityQueryLen = 120

// ParseCityQuery splits "name,country" on the first comma and trims both parts.
// Case is preserved; key normalization is left to the cache layer.
// maxLen <= 0 uses DefaultMaxCityQueryLen.
func ParseCityQuery(input string, maxLen int) (name, country string, err error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxCityQueryLen
	}
	s := strings.TrimSpace(input)
	if len([]rune(s)) > maxLen {
		return "", "", ErrCityQueryTooLong
	}
	for _, c := range s {
		if !isAllowedCityRune(c) {
			return "", "", ErrCityQueryInvalidChars
		}
	}
	name, country, ok := strings.Cut(s, ",")
	if !ok {
		return "", "", ErrCityQueryFormat
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", ErrCityNameEmpty
	}
	return name, strings.TrimSpace(country), nil
}

// isAllowedCityRune returns true for letters (Unicode), digits, space, comma,
// hyphen, apostrophe and period, which covers names like "St. John's".
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '\'', '.':
		return true
	}
	return false
}
