package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vulnops/vulnmgt-backend/model"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	content := []byte("default_days: 45\ndays:\n  CRITICAL: 7\n  high: 21\n  bogus: 5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	th, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := th.Resolve(model.SeverityCritical); got != 7 {
		t.Errorf("Resolve(CRITICAL) = %d, want 7", got)
	}
	// Severity keys are case-insensitive.
	if got := th.Resolve(model.SeverityHigh); got != 21 {
		t.Errorf("Resolve(HIGH) = %d, want 21", got)
	}
	// Unknown keys fall through to the default.
	if got := th.Resolve(model.SeverityMedium); got != 45 {
		t.Errorf("Resolve(MEDIUM) = %d, want 45", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	th, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if got := th.Resolve(model.SeverityCritical); got != FallbackDefaultDays {
		t.Errorf("Resolve(CRITICAL) = %d, want fallback %d", got, FallbackDefaultDays)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REMEDIATION_DEFAULT_DAYS", "12")

	th, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got := th.Resolve(model.SeverityLow); got != 12 {
		t.Errorf("Resolve(LOW) = %d, want env override 12", got)
	}
}
