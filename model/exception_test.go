package model

import (
	"testing"
	"time"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		candidate string
		want      bool
	}{
		{"exact match", "CVE-2024-0001", "CVE-2024-0001", true},
		{"case insensitive", "cve-2024-0001", "CVE-2024-0001", true},
		{"no match", "CVE-2024-0001", "CVE-2024-0002", false},
		{"wildcard prefix", "CVE-2024-*", "CVE-2024-1234", true},
		{"wildcard wrong prefix", "CVE-2023-*", "CVE-2024-1234", false},
		{"bare wildcard matches all", "*", "CVE-2019-0001", true},
		{"surrounding whitespace", " CVE-2024-0001 ", "CVE-2024-0001", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchPattern(tt.pattern, tt.candidate); got != tt.want {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestExceptionCovers(t *testing.T) {
	finding := &Finding{
		Key:     "finding-1",
		AssetID: "asset-1",
		Pattern: "CVE-2024-0001",
	}

	tests := []struct {
		name string
		exc  Exception
		want bool
	}{
		{"finding scope hit", Exception{Scope: ScopeFinding, Target: "finding-1"}, true},
		{"finding scope miss", Exception{Scope: ScopeFinding, Target: "finding-2"}, false},
		{"pattern scope hit", Exception{Scope: ScopePattern, Target: "CVE-2024-*"}, true},
		{"pattern scope miss", Exception{Scope: ScopePattern, Target: "CVE-2023-*"}, false},
		{"asset scope hit", Exception{Scope: ScopeAsset, Target: "asset-1"}, true},
		{"asset scope miss", Exception{Scope: ScopeAsset, Target: "asset-2"}, false},
		{"unknown scope never covers", Exception{Scope: ExceptionScope("bogus"), Target: "finding-1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.exc.Covers(finding); got != tt.want {
				t.Errorf("Covers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExceptionIsActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exc := Exception{ExpiresAt: now.Add(time.Hour)}
	if !exc.IsActive(now) {
		t.Error("exception expiring in the future should be active")
	}
	// Exactly at expiration the exception no longer applies.
	if exc.IsActive(now.Add(time.Hour)) {
		t.Error("exception at its expiration instant should be inactive")
	}
}

func TestRequestLifecyclePredicates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := NewExceptionRequest("alice", "CVE-2024-0001", ScopePattern, "justification", now.Add(24*time.Hour))
	if req.Status != RequestPending || req.Version != 1 {
		t.Fatalf("new request should start PENDING at version 1, got %s v%d", req.Status, req.Version)
	}
	if !req.IsActive(now) || req.IsTerminal() {
		t.Error("pending request should be active and non-terminal")
	}

	// An approved request holds its slot until the exception lapses.
	req.Status = RequestApproved
	if !req.IsActive(now) || req.IsTerminal() {
		t.Error("unexpired approved request should be active and non-terminal")
	}
	if req.IsActive(now.Add(24 * time.Hour)) {
		t.Error("approved request past its expiration should not hold the slot")
	}

	for _, status := range []RequestStatus{RequestRejected, RequestCancelled, RequestExpired} {
		req.Status = status
		if req.IsActive(now) || !req.IsTerminal() {
			t.Errorf("%s should be inactive and terminal", status)
		}
	}
}
