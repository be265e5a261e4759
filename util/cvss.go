// Package util provides utility functions for the backend.
package util

import (
	"strconv"
	"strings"

	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"

	"github.com/vulnops/vulnmgt-backend/model"
)

// CalculateCVSSScore calculates the CVSS base score from a vector string
func CalculateCVSSScore(vectorStr string) float64 {
	if vectorStr == "" || !strings.HasPrefix(vectorStr, "CVSS:") {
		return 0
	}
	if strings.HasPrefix(vectorStr, "CVSS:3.1") || strings.HasPrefix(vectorStr, "CVSS:3.0") {
		if cvss31, err := gocvss31.ParseVector(vectorStr); err == nil {
			return cvss31.BaseScore()
		}
	}
	if strings.HasPrefix(vectorStr, "CVSS:4.0") {
		if cvss40, err := gocvss40.ParseVector(vectorStr); err == nil {
			return cvss40.Score()
		}
	}
	return 0
}

// GetSeverityRating returns the severity rating for a given CVSS score
func GetSeverityRating(score float64) model.Severity {
	switch {
	case score == 0:
		return model.SeverityNone
	case score < 4.0:
		return model.SeverityLow
	case score < 7.0:
		return model.SeverityMedium
	case score < 9.0:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}

// ParseSeverityLabel parses scanner export labels like "9.8 Critical" or
// "High" into a score and rating. When both a score and a label are present
// the score wins; an empty label yields NONE.
func ParseSeverityLabel(label string) (float64, model.Severity) {
	fields := strings.Fields(strings.TrimSpace(label))
	if len(fields) == 0 {
		return 0, model.SeverityNone
	}

	if score, err := strconv.ParseFloat(fields[0], 64); err == nil {
		return score, GetSeverityRating(score)
	}

	if sev, ok := model.ParseSeverity(fields[0]); ok {
		return 0, sev
	}
	return 0, model.SeverityNone
}

// NormalizeFindingSeverity fills in a finding's severity fields from whatever
// the ingestion source provided: an explicit rating, a CVSS vector, or a
// numeric score. The most specific source available wins.
func NormalizeFindingSeverity(f *model.Finding) {
	if f.CVSSVector != "" {
		if score := CalculateCVSSScore(f.CVSSVector); score > 0 {
			f.SeverityScore = score
			f.Severity = GetSeverityRating(score)
			return
		}
	}
	if f.SeverityScore > 0 {
		f.Severity = GetSeverityRating(f.SeverityScore)
		return
	}
	if _, ok := model.ParseSeverity(string(f.Severity)); !ok {
		f.Severity = model.SeverityNone
	}
}
