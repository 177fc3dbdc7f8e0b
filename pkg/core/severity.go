package core

import "strings"

// Severity indicates how a failing validation rule affects the run.
type Severity string

// Severity levels for validation rules.
const (
	// SeverityError marks the run as a quality failure.
	SeverityError Severity = "error"
	// SeverityWarn is reported but never fails the run.
	SeverityWarn Severity = "warn"
)

// ParseSeverity converts a string to a Severity value.
// Unknown or empty strings default to SeverityError.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return SeverityWarn
	default:
		return SeverityError
	}
}
