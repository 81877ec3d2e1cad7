package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the environment variable value or a fallback if unset.
func GetEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// ParseDuration parses a duration string with a fallback.
// Bare integers are read as seconds so DETAIL_DELAY=20 means 20s.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// ParseInt parses an int string with a fallback.
func ParseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// ParseFloat parses a float string with a fallback.
func ParseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// ParseBool accepts 1/0, true/false, yes/no (any case) and returns fallback otherwise.
func ParseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

// Mask hides all but the edges of a secret for startup logs.
func Mask(s string) string {
	if len(s) <= 10 {
		return "****"
	}
	return s[:4] + "…" + s[len(s)-4:]
}
