package telemetry

import (
	"fmt"
	"time"

	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/tools/timeparser"
)

// Health status values
const (
	StatusOK         = "ok"
	StatusNoData     = "no_data"
	StatusLowBattery = "low_battery"
	StatusStale      = "stale"
)

// Health describes the condition of a device from its latest reading
type Health struct {
	Status     string `json:"status"`
	LowBattery bool   `json:"low_battery"`
	Stale      bool   `json:"stale"`
	Reason     string `json:"reason,omitempty"`
}

// Classifier handles reading health with configurable thresholds
type Classifier struct {
	lowBatteryThreshold float64
	staleAfter          time.Duration
}

// NewClassifier creates a new classifier. A zero staleAfter disables the
// stale check.
func NewClassifier(lowBatteryThreshold float64, staleAfter time.Duration) *Classifier {
	return &Classifier{
		lowBatteryThreshold: lowBatteryThreshold,
		staleAfter:          staleAfter,
	}
}

// IsLowBattery reports whether a battery level is under the threshold
func (c *Classifier) IsLowBattery(level float64) bool {
	return level < c.lowBatteryThreshold
}

// Classify checks the latest reading of a device. A nil reading means the
// device has never reported.
func (c *Classifier) Classify(latest *db.DeviceReading, now time.Time) Health {
	if latest == nil {
		return Health{Status: StatusNoData, Reason: "no readings"}
	}

	h := Health{Status: StatusOK}

	if c.staleAfter > 0 && latest.Timestamp.Before(now) && !timeparser.IsWithinTolerance(latest.Timestamp, now, c.staleAfter) {
		h.Stale = true
		h.Status = StatusStale
		h.Reason = fmt.Sprintf("last reading at %s is older than %s", latest.Timestamp.UTC().Format(time.RFC3339), c.staleAfter)
	}

	// low battery outranks staleness
	if c.IsLowBattery(latest.BatteryLevel) {
		h.LowBattery = true
		h.Status = StatusLowBattery
		h.Reason = fmt.Sprintf("battery level %.1f below %.1f", latest.BatteryLevel, c.lowBatteryThreshold)
	}

	return h
}
