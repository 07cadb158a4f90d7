package timeparser_test

import (
	"testing"
	"time"

	"github.com/septivank/asset-tracker/tools/timeparser"
)

func TestParseTimestamp_RFC3339(t *testing.T) {
	result, err := timeparser.ParseTimestamp("2025-12-29T10:30:45+01:00")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 9, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
	if result.Location() != time.UTC {
		t.Errorf("Expected UTC location, got %v", result.Location())
	}
}

func TestParseTimestamp_DayFirst(t *testing.T) {
	result, err := timeparser.ParseTimestamp("29/12/2025 10:30:45")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseTimestamp_DateOnly(t *testing.T) {
	result, err := timeparser.ParseTimestamp("2025-12-29")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
	if !timeparser.IsDateOnly("2025-12-29") {
		t.Error("Expected date-only input to be recognised")
	}
	if timeparser.IsDateOnly("2025-12-29 10:00:00") {
		t.Error("Expected timestamp not to be date-only")
	}
}

func TestParseTimestamp_InvalidFormat(t *testing.T) {
	_, err := timeparser.ParseTimestamp("yesterday")
	if err == nil {
		t.Error("Expected error for invalid timestamp format")
	}
}

func TestIsWithinTolerance(t *testing.T) {
	base := time.Date(2025, 12, 29, 10, 0, 0, 0, time.UTC)

	if !timeparser.IsWithinTolerance(base.Add(-4*time.Minute), base, 5*time.Minute) {
		t.Error("Expected 4 minutes to be within a 5 minute tolerance")
	}
	if timeparser.IsWithinTolerance(base.Add(6*time.Minute), base, 5*time.Minute) {
		t.Error("Expected 6 minutes to be outside a 5 minute tolerance")
	}
}
