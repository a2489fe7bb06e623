package normalization

import (
	"strconv"
	"strings"
	"time"
)

// msThreshold distinguishes second-resolution from millisecond-
// resolution numeric timestamps. Anything below it is treated as
// seconds since epoch.
const msThreshold = 1e12

// lookup returns the first value found under any alias. A dot in an
// alias descends one or more levels into nested objects.
func lookup(rec map[string]interface{}, aliases []string) (interface{}, bool) {
	for _, alias := range aliases {
		if v, ok := lookupPath(rec, alias); ok {
			return v, true
		}
	}
	return nil, false
}

// lookupPath resolves a single dotted path inside rec.
func lookupPath(rec map[string]interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	current := interface{}(rec)

	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// lookupString returns the first non-empty string value under any alias.
func lookupString(rec map[string]interface{}, aliases []string) (string, bool) {
	v, ok := lookup(rec, aliases)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// lookupFloat returns the first parseable numeric value under any
// alias. Exchange payloads encode decimals as strings, so both
// types are accepted.
func lookupFloat(rec map[string]interface{}, aliases []string) (float64, bool) {
	for _, alias := range aliases {
		v, ok := lookupPath(rec, alias)
		if !ok {
			continue
		}
		if f, ok := coerceFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// coerceFloat converts a float, integer, or decimal string to float64.
func coerceFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// lookupTimestamp returns the first parseable timestamp under any
// alias, normalized to Unix milliseconds. Accepts numeric seconds,
// numeric milliseconds, and RFC3339 strings.
func lookupTimestamp(rec map[string]interface{}, aliases []string) (int64, bool) {
	for _, alias := range aliases {
		v, ok := lookupPath(rec, alias)
		if !ok {
			continue
		}
		if ts, ok := coerceTimestamp(v); ok {
			return ts, true
		}
	}
	return 0, false
}

// coerceTimestamp converts a raw value to Unix milliseconds.
func coerceTimestamp(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return numericToMs(val)
	case int64:
		return numericToMs(float64(val))
	case int:
		return numericToMs(float64(val))
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UnixMilli(), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return numericToMs(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

// numericToMs normalizes a numeric epoch value to milliseconds.
func numericToMs(v float64) (int64, bool) {
	if v <= 0 {
		return 0, false
	}
	if v < msThreshold {
		return int64(v * 1000), true
	}
	return int64(v), true
}
