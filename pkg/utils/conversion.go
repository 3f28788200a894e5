package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ToBool converts DB and JSON scalar values to a boolean.
// TINYINT columns come back as int64 or []byte depending on the driver path.
func ToBool(val any) bool {
	switch v := val.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []byte:
		return parseBoolString(string(v))
	case string:
		return parseBoolString(v)
	default:
		return parseBoolString(fmt.Sprintf("%v", v))
	}
}

func parseBoolString(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch lower {
	case "1", "true", "yes", "on", "t":
		return true
	}
	b, err := strconv.ParseBool(lower)
	return err == nil && b
}

// ToString renders a payload value for templates and diffs.
func ToString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Truncate cuts s to at most max bytes without splitting a rune.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ClampLimit keeps page sizes inside [1, max], substituting def for non-positive input.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
