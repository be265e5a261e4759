// Package model defines the data structures used by the vulnmgt-backend,
// including assets, findings, exceptions, and aggregate rows.
package model

import "strings"

// Severity is the CVSS-derived severity rating of a finding
type Severity string

const (
	// SeverityNone represents findings with no meaningful CVSS score.
	SeverityNone Severity = "NONE"
	// SeverityLow represents CVSS scores below 4.0.
	SeverityLow Severity = "LOW"
	// SeverityMedium represents CVSS scores from 4.0 up to 7.0.
	SeverityMedium Severity = "MEDIUM"
	// SeverityHigh represents CVSS scores from 7.0 up to 9.0.
	SeverityHigh Severity = "HIGH"
	// SeverityCritical represents CVSS scores of 9.0 and above.
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists all severity levels in ascending order of urgency.
var Severities = []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns the ordinal position of the severity for comparisons.
// Unknown values rank below NONE so they never satisfy a minimum-severity filter.
func (s Severity) Rank() int {
	switch s {
	case SeverityNone:
		return 0
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return -1
	}
}

// AtLeast reports whether s is the same severity as min or more urgent.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ParseSeverity normalizes a severity string to one of the known levels.
func ParseSeverity(raw string) (Severity, bool) {
	switch Severity(strings.ToUpper(strings.TrimSpace(raw))) {
	case SeverityNone:
		return SeverityNone, true
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityCritical:
		return SeverityCritical, true
	}
	return SeverityNone, false
}
