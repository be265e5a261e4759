// Package model - Finding defines the struct for vulnerability findings.
package model

import "time"

// Finding represents a single detected vulnerability instance on one asset.
// Findings are owned and mutated by the ingestion subsystem; the overdue
// engine only reads them.
type Finding struct {
	Key           string    `json:"_key,omitempty"`
	AssetID       string    `json:"asset_id"`                 // _key of the owning asset
	Pattern       string    `json:"pattern"`                  // Class identifier, e.g. "CVE-2024-0001"
	Summary       string    `json:"summary,omitempty"`
	Severity      Severity  `json:"severity"`                 // e.g. "CRITICAL"
	SeverityScore float64   `json:"severity_score,omitempty"` // e.g. 9.8
	CVSSVector    string    `json:"cvss_vector,omitempty"`    // e.g. "CVSS:3.1/AV:N/..."
	DetectedAt    time.Time `json:"detected_at"`              // First-detected timestamp, age derives from this
	ObjType       string    `json:"objtype,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewFinding creates a new Finding with default values
func NewFinding(assetID, pattern string, severity Severity, detectedAt time.Time) *Finding {
	now := time.Now().UTC()
	return &Finding{
		AssetID:    assetID,
		Pattern:    pattern,
		Severity:   severity,
		DetectedAt: detectedAt,
		ObjType:    "Finding",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AgeDays returns the finding's age in whole days as of now.
func (f *Finding) AgeDays(now time.Time) int {
	if f.DetectedAt.IsZero() || now.Before(f.DetectedAt) {
		return 0
	}
	return int(now.Sub(f.DetectedAt).Hours() / 24)
}
