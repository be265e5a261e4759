package overdue

import (
	"context"
	"fmt"
	"time"

	"github.com/vulnops/vulnmgt-backend/internal/query"
	"github.com/vulnops/vulnmgt-backend/model"
)

// ResolveSummary aggregates every caller-visible row into one summary map.
func ResolveSummary(ctx context.Context, facade *query.Facade, caller model.Caller) (map[string]interface{}, error) {
	rows, computedAt, err := facade.AllOverdue(ctx, caller)
	if err != nil {
		return nil, err
	}

	critical, high, medium, low := 0, 0, 0, 0
	oldest := 0
	for i := range rows {
		row := &rows[i]
		critical += row.CriticalOverdue
		high += row.HighOverdue
		medium += row.MediumOverdue
		low += row.LowOverdue
		if row.OldestOverdueDays > oldest {
			oldest = row.OldestOverdueDays
		}
	}

	return map[string]interface{}{
		"total_assets":  len(rows),
		"total_overdue": critical + high + medium + low,
		"oldest_days":   oldest,
		"by_severity": map[string]interface{}{
			"critical": critical,
			"high":     high,
			"medium":   medium,
			"low":      low,
		},
		"computed_at": computedAt.Format(time.RFC3339),
	}, nil
}

// ResolveTopAssets returns the caller's worst assets, most overdue first.
func ResolveTopAssets(ctx context.Context, facade *query.Facade, caller model.Caller, limit int, minSeverity string) ([]map[string]interface{}, error) {
	filters := query.Filters{Page: 1, Size: limit}
	if minSeverity != "" {
		sev, ok := model.ParseSeverity(minSeverity)
		if !ok {
			return nil, fmt.Errorf("unknown severity %q", minSeverity)
		}
		filters.MinSeverity = sev
	}

	page, err := facade.ListOverdue(ctx, caller, filters)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(page.Rows))
	for i := range page.Rows {
		row := &page.Rows[i]
		out = append(out, map[string]interface{}{
			"asset_id":            row.AssetID,
			"asset_name":          row.AssetName,
			"critical_overdue":    row.CriticalOverdue,
			"high_overdue":        row.HighOverdue,
			"medium_overdue":      row.MediumOverdue,
			"low_overdue":         row.LowOverdue,
			"total_findings":      row.TotalFindings,
			"oldest_overdue_days": row.OldestOverdueDays,
			"highest_severity":    string(row.HighestSeverity),
		})
	}
	return out, nil
}
