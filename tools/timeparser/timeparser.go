package timeparser

import (
	"fmt"
	"time"
)

// ParseTimestamp attempts to parse a request timestamp with multiple formats.
// Values without a zone are taken as UTC.
func ParseTimestamp(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,      // Standard RFC3339 with optional fraction
		"2006-01-02T15:04:05", // ISO without zone
		"2006-01-02 15:04:05", // YYYY-MM-DD HH:mm:ss
		"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
		"2006-01-02",          // date only
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// IsDateOnly reports whether dateStr carries a date without a time of day
func IsDateOnly(dateStr string) bool {
	_, err := time.Parse("2006-01-02", dateStr)
	return err == nil
}

// IsWithinTolerance checks if two instants are at most tolerance apart
func IsWithinTolerance(a, b time.Time, tolerance time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
