package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AlarmSeverity mirrors the rule-engine alarm severities.
type AlarmSeverity string

const (
	AlarmSeverityCritical      AlarmSeverity = "CRITICAL"
	AlarmSeverityMajor         AlarmSeverity = "MAJOR"
	AlarmSeverityMinor         AlarmSeverity = "MINOR"
	AlarmSeverityWarning       AlarmSeverity = "WARNING"
	AlarmSeverityIndeterminate AlarmSeverity = "INDETERMINATE"
)

func (s AlarmSeverity) String() string { return string(s) }

// AlarmRule raises an alarm when a numeric metadata reading of a device type
// is strictly above the threshold.
type AlarmRule struct {
	DeviceType  string
	MetadataKey string
	Threshold   float64
	Severity    AlarmSeverity
}

var DefaultAlarmRule = AlarmRule{
	DeviceType:  "temperatureSensor",
	MetadataKey: "temperature",
	Threshold:   50.0,
	Severity:    AlarmSeverityCritical,
}

// Evaluate reports the severity for a reading. ok is false when the rule does
// not apply or the reading is within bounds.
func (r AlarmRule) Evaluate(deviceType string, metadata map[string]string) (AlarmSeverity, bool, error) {
	if deviceType != r.DeviceType {
		return "", false, nil
	}

	raw, found := metadata[r.MetadataKey]
	if !found {
		return "", false, nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s must be numeric, got %q", ErrValidation, r.MetadataKey, raw)
	}
	if value > r.Threshold {
		return r.Severity, true, nil
	}

	return "", false, nil
}
