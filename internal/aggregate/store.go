// Package aggregate precomputes per-asset overdue rows and serves them from
// an in-memory snapshot. A rebuild derives every row from findings, remediation
// thresholds, and active exceptions, then publishes the whole set with one
// atomic pointer swap. Readers never observe a half-built snapshot.
package aggregate

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vulnops/vulnmgt-backend/internal/observability"
	"github.com/vulnops/vulnmgt-backend/internal/policy"
	"github.com/vulnops/vulnmgt-backend/model"
)

// FindingSource supplies the asset inventory and its findings at rebuild time.
type FindingSource interface {
	ListAssets(ctx context.Context) ([]model.Asset, error)
	ListFindingsByAsset(ctx context.Context, assetID string) ([]model.Finding, error)
}

// ExceptionSource supplies the exceptions that are active at rebuild time.
type ExceptionSource interface {
	ActiveExceptions(ctx context.Context, now time.Time) ([]model.Exception, error)
}

// Result summarizes one completed rebuild.
type Result struct {
	RowCount int
	Duration time.Duration
}

// snapshot is an immutable rebuild output. rows is keyed by asset id; order
// holds the asset ids sorted ascending so iteration is deterministic.
type snapshot struct {
	rows       map[string]model.OverdueAggregateRow
	order      []string
	computedAt time.Time
}

// Store holds the current aggregate snapshot. Reads go through an atomic
// pointer and take no locks; rebuilds serialize on rebuildMu so concurrent
// triggers coalesce instead of racing.
type Store struct {
	findings   FindingSource
	exceptions ExceptionSource
	thresholds *policy.Thresholds
	log        *zap.SugaredLogger
	clock      func() time.Time

	current   atomic.Pointer[snapshot]
	rebuildMu sync.Mutex
	dirty     atomic.Bool
}

// NewStore builds an aggregate store with an empty snapshot, so reads are
// valid before the first rebuild completes.
func NewStore(findings FindingSource, exceptions ExceptionSource, thresholds *policy.Thresholds, log *zap.SugaredLogger) *Store {
	s := &Store{
		findings:   findings,
		exceptions: exceptions,
		thresholds: thresholds,
		log:        log,
		clock:      func() time.Time { return time.Now().UTC() },
	}
	s.current.Store(&snapshot{rows: map[string]model.OverdueAggregateRow{}})
	return s
}

// WithClock overrides the time source. Test hook.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// Rebuild recomputes every row and swaps the snapshot. On error the previous
// snapshot stays in place untouched.
func (s *Store) Rebuild(ctx context.Context) (Result, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	next, err := s.compute(ctx)
	duration := time.Since(start)
	if err != nil {
		observability.ObserveRebuild(duration, 0, err)
		s.log.Errorw("aggregate rebuild failed, keeping previous snapshot", "error", err)
		return Result{}, err
	}

	s.current.Store(next)
	s.dirty.Store(false)
	observability.ObserveRebuild(duration, len(next.order), nil)
	s.log.Infow("aggregate rebuild complete", "rows", len(next.order), "duration", duration)
	return Result{RowCount: len(next.order), Duration: duration}, nil
}

func (s *Store) compute(ctx context.Context) (*snapshot, error) {
	now := s.clock()

	assets, err := s.findings.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Key < assets[j].Key })

	active, err := s.exceptions.ActiveExceptions(ctx, now)
	if err != nil {
		return nil, err
	}

	next := &snapshot{
		rows:       make(map[string]model.OverdueAggregateRow, len(assets)),
		computedAt: now,
	}
	for _, asset := range assets {
		findings, err := s.findings.ListFindingsByAsset(ctx, asset.Key)
		if err != nil {
			return nil, err
		}
		row := s.computeRow(&asset, findings, active, now)
		if row.TotalOverdue() == 0 && len(row.Suppressed) == 0 {
			continue
		}
		next.rows[asset.Key] = row
		next.order = append(next.order, asset.Key)
	}
	return next, nil
}

// computeRow derives one asset's row. A finding past its remediation window
// either increments a severity bucket or, when an active exception covers it,
// lands in the suppressed list so read-time expiry replay can restore it.
func (s *Store) computeRow(asset *model.Asset, findings []model.Finding, active []model.Exception, now time.Time) model.OverdueAggregateRow {
	row := model.OverdueAggregateRow{
		AssetID:    asset.Key,
		AssetName:  asset.Name,
		ComputedAt: now,
	}
	for i := range findings {
		f := &findings[i]
		row.TotalFindings++

		age := f.AgeDays(now)
		if !s.thresholds.IsOverdue(age, f.Severity) {
			continue
		}
		if exc := coveringException(active, f, now); exc != nil {
			row.Suppressed = append(row.Suppressed, model.SuppressedFinding{
				FindingID:          f.Key,
				Severity:           f.Severity,
				DetectedAt:         f.DetectedAt,
				ExceptionKey:       exc.Key,
				ExceptionExpiresAt: exc.ExpiresAt,
			})
			continue
		}
		row.AddOverdue(f.Severity)
		if age > row.OldestOverdueDays {
			row.OldestOverdueDays = age
		}
	}
	row.HighestSeverity = HighestOverdueSeverity(&row)
	return row
}

// coveringException returns the active exception with the latest expiration
// that covers the finding, or nil. Picking the longest-lived cover keeps the
// suppression stable when overlapping exceptions lapse at different times.
func coveringException(active []model.Exception, f *model.Finding, now time.Time) *model.Exception {
	var best *model.Exception
	for i := range active {
		exc := &active[i]
		if !exc.IsActive(now) || !exc.Covers(f) {
			continue
		}
		if best == nil || exc.ExpiresAt.After(best.ExpiresAt) {
			best = exc
		}
	}
	return best
}

// HighestOverdueSeverity returns the most severe bucket with a non-zero
// count, or NONE when the row has no overdue findings.
func HighestOverdueSeverity(row *model.OverdueAggregateRow) model.Severity {
	for i := len(model.Severities) - 1; i >= 0; i-- {
		sev := model.Severities[i]
		if row.OverdueCount(sev) > 0 {
			return sev
		}
	}
	return model.SeverityNone
}

// Snapshot returns clones of all rows in ascending asset-id order.
func (s *Store) Snapshot() []model.OverdueAggregateRow {
	snap := s.current.Load()
	out := make([]model.OverdueAggregateRow, 0, len(snap.order))
	for _, id := range snap.order {
		row := snap.rows[id]
		out = append(out, row.Clone())
	}
	return out
}

// Row returns a clone of one asset's row.
func (s *Store) Row(assetID string) (model.OverdueAggregateRow, bool) {
	snap := s.current.Load()
	row, ok := snap.rows[assetID]
	if !ok {
		return model.OverdueAggregateRow{}, false
	}
	return row.Clone(), true
}

// ComputedAt returns when the current snapshot was derived. Zero before the
// first rebuild.
func (s *Store) ComputedAt() time.Time {
	return s.current.Load().computedAt
}

// MarkDirty flags the snapshot as stale. The next RebuildIfDirty call will
// recompute it.
func (s *Store) MarkDirty() {
	s.dirty.Store(true)
}

// RebuildIfDirty rebuilds only when a change has been flagged since the last
// successful rebuild.
func (s *Store) RebuildIfDirty(ctx context.Context) (Result, bool, error) {
	if !s.dirty.Load() {
		return Result{}, false, nil
	}
	res, err := s.Rebuild(ctx)
	if err != nil {
		return Result{}, true, err
	}
	return res, true, nil
}
