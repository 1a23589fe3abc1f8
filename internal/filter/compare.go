package filter

import (
	"math"
	"strconv"
	"strings"
)

// Comparator reports whether a decoded JSON field equals a query value.
// present is false when the element has no field of that name.
type Comparator func(field any, present bool, query string) bool

// LooseEqual compares with coercion: numbers and booleans are compared
// numerically against the query string, arrays by their comma-joined form,
// and a missing field or null never matches.
func LooseEqual(field any, present bool, query string) bool {
	if !present || field == nil {
		return false
	}
	switch v := field.(type) {
	case string:
		return v == query
	case float64:
		n, ok := toNumber(query)
		return ok && n == v
	case bool:
		n, ok := toNumber(query)
		if !ok {
			return false
		}
		if v {
			return n == 1
		}
		return n == 0
	case []any:
		return primitiveString(v) == query
	case map[string]any:
		return query == "[object Object]"
	}
	return false
}

// StrictEqual matches only string fields with identical content.
func StrictEqual(field any, present bool, query string) bool {
	s, ok := field.(string)
	return present && ok && s == query
}

// toNumber converts a query string the way a loosely typed comparison would:
// surrounding whitespace is ignored, an empty string is zero, and hex, octal
// and binary integer literals are accepted.
func toNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	}
	if strings.ContainsAny(lower, "_in") {
		// Reject forms ParseFloat allows but a loose comparison would not ("1_000", "inf", "nan").
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func primitiveString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = primitiveString(e)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	}
	return ""
}
