// Package policy resolves remediation windows: how many days a finding of a
// given severity may stay open before it counts as overdue.
package policy

import (
	"github.com/vulnops/vulnmgt-backend/model"
)

// FallbackDefaultDays applies when neither the config file nor the
// environment provides a default window.
const FallbackDefaultDays = 30

// Thresholds maps severities to allowed-age-in-days. Immutable after
// construction, so it is safe for concurrent use without locking.
type Thresholds struct {
	days        map[model.Severity]int
	defaultDays int
}

// New builds a threshold table. Negative entries and entries for unknown
// severities are dropped; defaultDays falls back to FallbackDefaultDays when
// non-positive so every severity resolves to a finite window.
func New(days map[model.Severity]int, defaultDays int) *Thresholds {
	if defaultDays <= 0 {
		defaultDays = FallbackDefaultDays
	}
	own := make(map[model.Severity]int, len(days))
	for sev, d := range days {
		if d < 0 {
			continue
		}
		if _, ok := model.ParseSeverity(string(sev)); !ok {
			continue
		}
		own[sev] = d
	}
	return &Thresholds{days: own, defaultDays: defaultDays}
}

// Resolve returns the allowed age in days for a severity, falling back to the
// default window when the severity has no explicit entry.
func (t *Thresholds) Resolve(sev model.Severity) int {
	if d, ok := t.days[sev]; ok {
		return d
	}
	return t.defaultDays
}

// IsOverdue reports whether a finding of the given age exceeds its window.
// An age exactly equal to the threshold is still on time.
func (t *Thresholds) IsOverdue(ageDays int, sev model.Severity) bool {
	return ageDays > t.Resolve(sev)
}

// DaysOverdue returns how many days past the window the finding is, or 0.
func (t *Thresholds) DaysOverdue(ageDays int, sev model.Severity) int {
	over := ageDays - t.Resolve(sev)
	if over < 0 {
		return 0
	}
	return over
}
