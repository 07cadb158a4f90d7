package validator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/tools/timeparser"
)

// MaxSearchTermLength bounds free-text search input
const MaxSearchTermLength = 100

// ValidationError is a rejected request parameter
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// HistoryRange is a validated reading history window
type HistoryRange struct {
	From time.Time
	To   time.Time
}

// Validator handles request validation with configurable parameters
type Validator struct {
	historyMaxDays int
}

// NewValidator creates a new validator with the specified history window
func NewValidator(historyMaxDays int) *Validator {
	return &Validator{
		historyMaxDays: historyMaxDays,
	}
}

// ValidateHistoryRange parses and checks a history window. A date-only upper
// bound covers the whole day.
func (v *Validator) ValidateHistoryRange(fromStr, toStr string) (HistoryRange, error) {
	if fromStr == "" {
		return HistoryRange{}, &ValidationError{Field: "from", Reason: "required"}
	}
	if toStr == "" {
		return HistoryRange{}, &ValidationError{Field: "to", Reason: "required"}
	}

	from, err := timeparser.ParseTimestamp(fromStr)
	if err != nil {
		return HistoryRange{}, &ValidationError{Field: "from", Reason: fmt.Sprintf("invalid timestamp format: %v", err)}
	}
	to, err := timeparser.ParseTimestamp(toStr)
	if err != nil {
		return HistoryRange{}, &ValidationError{Field: "to", Reason: fmt.Sprintf("invalid timestamp format: %v", err)}
	}
	if timeparser.IsDateOnly(toStr) {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	if to.Before(from) {
		return HistoryRange{}, &ValidationError{Field: "to", Reason: "must not be before from"}
	}

	// Validate window size
	if v.historyMaxDays > 0 && !timeparser.IsWithinTolerance(from, to, time.Duration(v.historyMaxDays)*24*time.Hour) {
		return HistoryRange{}, &ValidationError{Field: "to", Reason: fmt.Sprintf("window exceeds %d days", v.historyMaxDays)}
	}

	return HistoryRange{From: from, To: to}, nil
}

// ValidateSearchTerm trims a search term and checks its length
func (v *Validator) ValidateSearchTerm(term string, required bool) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" && required {
		return "", &ValidationError{Field: "q", Reason: "required"}
	}
	if utf8.RuneCountInString(term) > MaxSearchTermLength {
		return "", &ValidationError{Field: "q", Reason: fmt.Sprintf("longer than %d characters", MaxSearchTermLength)}
	}
	return term, nil
}

// ParseUUIDs parses a comma separated list of ids. An empty list is valid.
func (v *Validator) ParseUUIDs(field, csv string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range splitList(csv) {
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a uuid", part)}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseDeviceIDs parses a comma separated list of device ids
func (v *Validator) ParseDeviceIDs(field, csv string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(csv) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a device id", part)}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
