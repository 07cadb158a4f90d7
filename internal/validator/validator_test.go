package validator_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/septivank/asset-tracker/internal/validator"
)

const testHistoryMaxDays = 31

func TestValidateHistoryRange_Valid(t *testing.T) {
	v := validator.NewValidator(testHistoryMaxDays)

	r, err := v.ValidateHistoryRange("2025-03-01T08:00:00Z", "2025-03-01T09:00:00Z")
	if err != nil {
		t.Fatalf("Expected valid range, got: %v", err)
	}

	if !r.From.Equal(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected from %v", r.From)
	}
	if !r.To.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected to %v", r.To)
	}
}

func TestValidateHistoryRange_DateOnlyCoversDay(t *testing.T) {
	v := validator.NewValidator(testHistoryMaxDays)

	r, err := v.ValidateHistoryRange("2025-03-01", "2025-03-01")
	if err != nil {
		t.Fatalf("Expected valid range, got: %v", err)
	}

	if r.To.Sub(r.From) != 24*time.Hour-time.Nanosecond {
		t.Errorf("Expected a whole day window, got %v", r.To.Sub(r.From))
	}
}

func TestValidateHistoryRange_Rejections(t *testing.T) {
	v := validator.NewValidator(testHistoryMaxDays)

	cases := []struct {
		name, from, to, field string
	}{
		{"missing from", "", "2025-03-01", "from"},
		{"missing to", "2025-03-01", "", "to"},
		{"bad from", "soon", "2025-03-01", "from"},
		{"reversed", "2025-03-02", "2025-03-01T00:00:00Z", "to"},
		{"too wide", "2025-01-01", "2025-03-01", "to"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ValidateHistoryRange(tc.from, tc.to)

			var verr *validator.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("Expected field '%s', got '%s'", tc.field, verr.Field)
			}
		})
	}
}

func TestValidateSearchTerm(t *testing.T) {
	v := validator.NewValidator(testHistoryMaxDays)

	term, err := v.ValidateSearchTerm("  crane ", true)
	if err != nil || term != "crane" {
		t.Errorf("Expected trimmed term, got '%s' (%v)", term, err)
	}

	if _, err := v.ValidateSearchTerm("   ", true); err == nil {
		t.Error("Expected error for blank required term")
	}

	if term, err := v.ValidateSearchTerm("", false); err != nil || term != "" {
		t.Error("Expected blank optional term to pass")
	}

	if _, err := v.ValidateSearchTerm(strings.Repeat("x", validator.MaxSearchTermLength+1), false); err == nil {
		t.Error("Expected error for overlong term")
	}
}

func TestParseLists(t *testing.T) {
	v := validator.NewValidator(testHistoryMaxDays)

	ids, err := v.ParseDeviceIDs("device_ids", "1, 2,,3")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[2] != 3 {
		t.Errorf("Unexpected device ids %v", ids)
	}

	if _, err := v.ParseDeviceIDs("device_ids", "1,x"); err == nil {
		t.Error("Expected error for non-numeric device id")
	}

	uuids, err := v.ParseUUIDs("ids", "")
	if err != nil || len(uuids) != 0 {
		t.Errorf("Expected empty list, got %v (%v)", uuids, err)
	}

	if _, err := v.ParseUUIDs("ids", "not-a-uuid"); err == nil {
		t.Error("Expected error for malformed uuid")
	}
}
