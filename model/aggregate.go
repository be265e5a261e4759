// Package model - Overdue aggregate rows precomputed by the rebuild pass.
package model

import "time"

// SuppressedFinding records a finding that was overdue at rebuild time but
// excluded from the row's counts because an active exception covered it. The
// query facade replays these entries at read time so a lapsed exception stops
// suppressing immediately instead of waiting for the next rebuild.
type SuppressedFinding struct {
	FindingID          string    `json:"finding_id"`
	Severity           Severity  `json:"severity"`
	DetectedAt         time.Time `json:"detected_at"`
	ExceptionKey       string    `json:"exception_key"`
	ExceptionExpiresAt time.Time `json:"exception_expires_at"`
}

// OverdueAggregateRow is one precomputed row per asset holding per-severity
// overdue counts. Rows are fully derived from findings, thresholds, and active
// exceptions at computation time; a rebuild replaces the whole set at once.
type OverdueAggregateRow struct {
	AssetID           string              `json:"asset_id"`
	AssetName         string              `json:"asset_name"`
	CriticalOverdue   int                 `json:"critical_overdue"`
	HighOverdue       int                 `json:"high_overdue"`
	MediumOverdue     int                 `json:"medium_overdue"`
	LowOverdue        int                 `json:"low_overdue"`
	TotalFindings     int                 `json:"total_findings"`
	OldestOverdueDays int                 `json:"oldest_overdue_days"`
	HighestSeverity   Severity            `json:"highest_severity"`
	Suppressed        []SuppressedFinding `json:"suppressed,omitempty"`
	ComputedAt        time.Time           `json:"computed_at"`
}

// OverdueCount returns the row's overdue count for one severity bucket.
// NONE findings never count as overdue.
func (r *OverdueAggregateRow) OverdueCount(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return r.CriticalOverdue
	case SeverityHigh:
		return r.HighOverdue
	case SeverityMedium:
		return r.MediumOverdue
	case SeverityLow:
		return r.LowOverdue
	}
	return 0
}

// AddOverdue increments the bucket for one severity.
func (r *OverdueAggregateRow) AddOverdue(sev Severity) {
	switch sev {
	case SeverityCritical:
		r.CriticalOverdue++
	case SeverityHigh:
		r.HighOverdue++
	case SeverityMedium:
		r.MediumOverdue++
	case SeverityLow:
		r.LowOverdue++
	}
}

// TotalOverdue returns the sum of all overdue buckets.
func (r *OverdueAggregateRow) TotalOverdue() int {
	return r.CriticalOverdue + r.HighOverdue + r.MediumOverdue + r.LowOverdue
}

// OverdueAtLeast returns the number of overdue findings at or above min.
func (r *OverdueAggregateRow) OverdueAtLeast(min Severity) int {
	total := 0
	for _, sev := range Severities {
		if sev.AtLeast(min) {
			total += r.OverdueCount(sev)
		}
	}
	return total
}

// Clone returns a deep copy so callers can mutate the row without touching
// the shared snapshot.
func (r *OverdueAggregateRow) Clone() OverdueAggregateRow {
	out := *r
	if r.Suppressed != nil {
		out.Suppressed = make([]SuppressedFinding, len(r.Suppressed))
		copy(out.Suppressed, r.Suppressed)
	}
	return out
}
