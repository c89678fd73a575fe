package models

// DelayStatus is the dashboard traffic-light rating of a delay figure
type DelayStatus string

const (
	StatusGood     DelayStatus = "good"
	StatusWarning  DelayStatus = "warning"
	StatusCritical DelayStatus = "critical"
)

// Delay thresholds in minutes
const (
	// DelayedThresholdMinutes: a segment or journey counts as delayed when its
	// delay is strictly greater than this value.
	DelayedThresholdMinutes = 2

	// WarningThresholdMinutes: delays above this value are at least warning
	WarningThresholdMinutes = 2

	// CriticalThresholdMinutes is the lower bound (inclusive) for critical
	CriticalThresholdMinutes = 5
)

// ClassifyDelay maps a delay in minutes to a status.
// Up to and including 2 minutes is good, below 5 is warning, everything else
// is critical. The good boundary matches DelayedThresholdMinutes so a delayed
// segment is never rated good.
func ClassifyDelay(delayMinutes float64) DelayStatus {
	if delayMinutes <= WarningThresholdMinutes {
		return StatusGood
	}
	if delayMinutes < CriticalThresholdMinutes {
		return StatusWarning
	}
	return StatusCritical
}

// ClassifyNullableDelay returns nil when the delay is unknown so that missing
// data is never reported as on time.
func ClassifyNullableDelay(delayMinutes *int) *DelayStatus {
	if delayMinutes == nil {
		return nil
	}
	s := ClassifyDelay(float64(*delayMinutes))
	return &s
}

// IsDelayed reports whether a delay exceeds DelayedThresholdMinutes
func IsDelayed(delayMinutes float64) bool {
	return delayMinutes > DelayedThresholdMinutes
}

// dayNames maps the Sunday-first weekday number (1=Sunday .. 7=Saturday) to
// the name shown on the dashboard.
var dayNames = map[int]string{
	1: "Sonntag",
	2: "Montag",
	3: "Dienstag",
	4: "Mittwoch",
	5: "Donnerstag",
	6: "Freitag",
	7: "Samstag",
}

// DayName returns the weekday name for a Sunday-first day number
func DayName(dayOfWeek int) string {
	if name, ok := dayNames[dayOfWeek]; ok {
		return name
	}
	return "Unknown"
}
