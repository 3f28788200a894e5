package services

import (
	"fmt"
	"strconv"
)

// Helpers for reading automation action_config maps. Values arrive from JSON
// (API), YAML (seed file) or the database, so numbers may be float64, int or string.

// GetConfigString returns config[key] as a string, or "".
func GetConfigString(config map[string]any, key string) string {
	if val, ok := config[key].(string); ok {
		return val
	}
	return ""
}

// GetConfigStringRequired extracts a string value and returns an error if missing or empty.
func GetConfigStringRequired(config map[string]any, key string) (string, error) {
	val := GetConfigString(config, key)
	if val == "" {
		return "", fmt.Errorf("missing required config key: %s", key)
	}
	return val, nil
}

// GetConfigInt returns config[key] as an int and whether it was present and numeric.
func GetConfigInt(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}
