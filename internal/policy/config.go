package policy

import (
	"os"
	"strconv"

	yaml "gopkg.in/yaml.v2"

	"github.com/vulnops/vulnmgt-backend/model"
)

// fileConfig is the on-disk shape of the thresholds file:
//
//	default_days: 30
//	days:
//	  CRITICAL: 15
//	  HIGH: 30
//	  MEDIUM: 60
//	  LOW: 90
type fileConfig struct {
	DefaultDays int            `yaml:"default_days"`
	Days        map[string]int `yaml:"days"`
}

// Load reads the thresholds file at path and applies the
// REMEDIATION_DEFAULT_DAYS environment override. A missing file is not an
// error; it yields a table where every severity resolves to the default.
func Load(path string) (*Thresholds, error) {
	cfg := fileConfig{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}

	if env := os.Getenv("REMEDIATION_DEFAULT_DAYS"); env != "" {
		if v, err := strconv.Atoi(env); err == nil && v > 0 {
			cfg.DefaultDays = v
		}
	}

	days := make(map[model.Severity]int, len(cfg.Days))
	for raw, d := range cfg.Days {
		if sev, ok := model.ParseSeverity(raw); ok {
			days[sev] = d
		}
	}

	return New(days, cfg.DefaultDays), nil
}
