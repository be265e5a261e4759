package util

import (
	"testing"
	"time"

	"github.com/vulnops/vulnmgt-backend/model"
)

const vector98 = "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"

func TestGetSeverityRating(t *testing.T) {
	tests := []struct {
		score float64
		want  model.Severity
	}{
		{0, model.SeverityNone},
		{0.1, model.SeverityLow},
		{3.9, model.SeverityLow},
		{4.0, model.SeverityMedium},
		{6.9, model.SeverityMedium},
		{7.0, model.SeverityHigh},
		{8.9, model.SeverityHigh},
		{9.0, model.SeverityCritical},
		{10.0, model.SeverityCritical},
	}
	for _, tt := range tests {
		if got := GetSeverityRating(tt.score); got != tt.want {
			t.Errorf("GetSeverityRating(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestCalculateCVSSScore(t *testing.T) {
	if got := CalculateCVSSScore(vector98); got != 9.8 {
		t.Errorf("score = %v, want 9.8", got)
	}

	for _, vec := range []string{
		"",
		"AV:N/AC:L",
		"CVSS:3.1/AV:X",
		"CVSS:2.0/AV:N/AC:L/Au:N/C:C/I:C/A:C",
	} {
		if got := CalculateCVSSScore(vec); got != 0 {
			t.Errorf("CalculateCVSSScore(%q) = %v, want 0", vec, got)
		}
	}
}

func TestParseSeverityLabel(t *testing.T) {
	tests := []struct {
		label     string
		wantScore float64
		wantSev   model.Severity
	}{
		{"", 0, model.SeverityNone},
		{"High", 0, model.SeverityHigh},
		{"  critical  ", 0, model.SeverityCritical},
		{"9.8 Critical", 9.8, model.SeverityCritical},
		// A numeric score beats a contradicting label.
		{"3.1 High", 3.1, model.SeverityLow},
		{"garbage", 0, model.SeverityNone},
	}
	for _, tt := range tests {
		score, sev := ParseSeverityLabel(tt.label)
		if score != tt.wantScore || sev != tt.wantSev {
			t.Errorf("ParseSeverityLabel(%q) = (%v, %s), want (%v, %s)",
				tt.label, score, sev, tt.wantScore, tt.wantSev)
		}
	}
}

func TestNormalizeFindingSeverity(t *testing.T) {
	detectedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("vector beats score and rating", func(t *testing.T) {
		f := model.NewFinding("asset-1", "CVE-2024-0001", model.SeverityLow, detectedAt)
		f.CVSSVector = vector98
		f.SeverityScore = 2.0
		NormalizeFindingSeverity(f)
		if f.SeverityScore != 9.8 || f.Severity != model.SeverityCritical {
			t.Errorf("got (%v, %s), want (9.8, CRITICAL)", f.SeverityScore, f.Severity)
		}
	})

	t.Run("score fills missing rating", func(t *testing.T) {
		f := model.NewFinding("asset-1", "CVE-2024-0002", "", detectedAt)
		f.SeverityScore = 5.5
		NormalizeFindingSeverity(f)
		if f.Severity != model.SeverityMedium {
			t.Errorf("severity = %s, want MEDIUM", f.Severity)
		}
	})

	t.Run("explicit rating survives", func(t *testing.T) {
		f := model.NewFinding("asset-1", "CVE-2024-0003", model.SeverityHigh, detectedAt)
		NormalizeFindingSeverity(f)
		if f.Severity != model.SeverityHigh {
			t.Errorf("severity = %s, want HIGH", f.Severity)
		}
	})

	t.Run("unknown rating resets to none", func(t *testing.T) {
		f := model.NewFinding("asset-1", "CVE-2024-0004", "ELEVATED", detectedAt)
		NormalizeFindingSeverity(f)
		if f.Severity != model.SeverityNone {
			t.Errorf("severity = %s, want NONE", f.Severity)
		}
	})
}
