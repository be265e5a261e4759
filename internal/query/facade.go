// Package query serves overdue aggregate reads. It joins the precomputed
// snapshot with the caller's asset scope, replays suppressed findings whose
// exceptions have lapsed since the last rebuild, and paginates the result.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vulnops/vulnmgt-backend/internal/access"
	"github.com/vulnops/vulnmgt-backend/internal/aggregate"
	apperrors "github.com/vulnops/vulnmgt-backend/internal/errors"
	"github.com/vulnops/vulnmgt-backend/internal/policy"
	"github.com/vulnops/vulnmgt-backend/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Filters narrows an overdue listing. Zero values mean "no filter".
type Filters struct {
	// MinSeverity keeps rows that have at least one overdue finding at or
	// above this severity.
	MinSeverity model.Severity
	// Search is a case-insensitive substring match on asset id or name.
	Search string
	// Page is 1-based; Size caps at maxPageSize and defaults to
	// defaultPageSize when non-positive.
	Page int
	Size int
}

// Page is one page of overdue rows plus paging metadata.
type Page struct {
	Rows       []model.OverdueAggregateRow `json:"rows"`
	Total      int                         `json:"total"`
	PageNum    int                         `json:"page"`
	PageSize   int                         `json:"size"`
	ComputedAt time.Time                   `json:"computed_at"`
}

// Facade answers overdue listings for a caller.
type Facade struct {
	store      *aggregate.Store
	filter     *access.Filter
	thresholds *policy.Thresholds
	log        *zap.SugaredLogger
	clock      func() time.Time
}

// NewFacade builds the read path over a snapshot store and an access filter.
func NewFacade(store *aggregate.Store, filter *access.Filter, thresholds *policy.Thresholds, log *zap.SugaredLogger) *Facade {
	return &Facade{
		store:      store,
		filter:     filter,
		thresholds: thresholds,
		log:        log,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Test hook.
func (f *Facade) WithClock(clock func() time.Time) *Facade {
	f.clock = clock
	return f
}

// AllOverdue returns every caller-visible overdue row without pagination,
// sorted the same way as ListOverdue. Serves whole-picture aggregations.
func (f *Facade) AllOverdue(ctx context.Context, caller model.Caller) ([]model.OverdueAggregateRow, time.Time, error) {
	rows, err := f.visibleRows(ctx, caller, Filters{})
	if err != nil {
		return nil, time.Time{}, err
	}
	return rows, f.store.ComputedAt(), nil
}

// ListOverdue returns the caller-visible overdue rows matching the filters,
// sorted by oldest overdue age descending with asset id as tiebreaker.
func (f *Facade) ListOverdue(ctx context.Context, caller model.Caller, filters Filters) (*Page, error) {
	if filters.MinSeverity != "" {
		if _, ok := model.ParseSeverity(string(filters.MinSeverity)); !ok {
			return nil, apperrors.Validationf("unknown severity %q", filters.MinSeverity)
		}
	}
	if filters.Page < 0 {
		return nil, apperrors.Validationf("page must be positive")
	}

	rows, err := f.visibleRows(ctx, caller, filters)
	if err != nil {
		return nil, err
	}

	page, size := normalizePaging(filters.Page, filters.Size)
	total := len(rows)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return &Page{
		Rows:       rows[start:end],
		Total:      total,
		PageNum:    page,
		PageSize:   size,
		ComputedAt: f.store.ComputedAt(),
	}, nil
}

// visibleRows applies access scope, expiry replay, and row filters, returning
// the sorted visible set.
func (f *Facade) visibleRows(ctx context.Context, caller model.Caller, filters Filters) ([]model.OverdueAggregateRow, error) {
	scope, err := f.filter.AccessibleAssets(ctx, caller)
	if err != nil {
		return nil, err
	}

	now := f.clock()
	search := strings.ToLower(strings.TrimSpace(filters.Search))

	var rows []model.OverdueAggregateRow
	for _, row := range f.store.Snapshot() {
		if !scope.Allows(row.AssetID) {
			continue
		}
		replayExpired(&row, f.thresholds, now)
		if row.TotalOverdue() == 0 {
			continue
		}
		if filters.MinSeverity != "" && row.OverdueAtLeast(filters.MinSeverity) == 0 {
			continue
		}
		if search != "" && !matchesSearch(&row, search) {
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].OldestOverdueDays != rows[j].OldestOverdueDays {
			return rows[i].OldestOverdueDays > rows[j].OldestOverdueDays
		}
		return rows[i].AssetID < rows[j].AssetID
	})
	return rows, nil
}

// replayExpired moves suppressed findings whose exception has lapsed back into
// the row's overdue buckets. The snapshot itself is untouched; the caller
// holds a clone.
func replayExpired(row *model.OverdueAggregateRow, thresholds *policy.Thresholds, now time.Time) {
	if len(row.Suppressed) == 0 {
		return
	}
	kept := row.Suppressed[:0]
	for _, sf := range row.Suppressed {
		if now.Before(sf.ExceptionExpiresAt) {
			kept = append(kept, sf)
			continue
		}
		age := ageDays(sf.DetectedAt, now)
		if !thresholds.IsOverdue(age, sf.Severity) {
			continue
		}
		row.AddOverdue(sf.Severity)
		if age > row.OldestOverdueDays {
			row.OldestOverdueDays = age
		}
	}
	row.Suppressed = kept
	row.HighestSeverity = aggregate.HighestOverdueSeverity(row)
}

func ageDays(detectedAt, now time.Time) int {
	if now.Before(detectedAt) {
		return 0
	}
	return int(now.Sub(detectedAt).Hours() / 24)
}

func matchesSearch(row *model.OverdueAggregateRow, search string) bool {
	return strings.Contains(strings.ToLower(row.AssetID), search) ||
		strings.Contains(strings.ToLower(row.AssetName), search)
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
