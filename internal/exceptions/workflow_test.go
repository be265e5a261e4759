package exceptions_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/vulnops/vulnmgt-backend/internal/errors"
	"github.com/vulnops/vulnmgt-backend/internal/exceptions"
	"github.com/vulnops/vulnmgt-backend/internal/storage/memstore"
	"github.com/vulnops/vulnmgt-backend/model"
)

var (
	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	requester = model.Caller{Username: "alice", Role: model.RoleUser}
	reviewer  = model.Caller{Username: "sofia", Role: model.RoleSecurityOfficer}
	admin     = model.Caller{Username: "root", Role: model.RoleAdmin}
)

func newTestWorkflow(t *testing.T) (*exceptions.Workflow, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	wf := exceptions.NewWorkflow(store, zap.NewNop().Sugar()).
		WithClock(func() time.Time { return testNow })
	return wf, store
}

func validInput() exceptions.CreateInput {
	return exceptions.CreateInput{
		Target:        "CVE-2024-0001",
		Scope:         model.ScopePattern,
		Justification: strings.Repeat("compensating control documented in change 4711. ", 2),
		ExpiresAt:     testNow.Add(30 * 24 * time.Hour),
	}
}

func TestCreatePendingRequest(t *testing.T) {
	wf, store := newTestWorkflow(t)

	req, err := wf.Create(context.Background(), requester, validInput())
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != model.RequestPending || req.Version != 1 {
		t.Errorf("got %s v%d, want PENDING v1", req.Status, req.Version)
	}
	if req.Key == "" {
		t.Error("stored request should have a key")
	}
	if excs := store.Exceptions(); len(excs) != 0 {
		t.Errorf("pending request must not materialize an exception, found %d", len(excs))
	}
}

func TestCreateAutoApproved(t *testing.T) {
	for _, caller := range []model.Caller{reviewer, admin} {
		t.Run(caller.Role, func(t *testing.T) {
			wf, store := newTestWorkflow(t)

			req, err := wf.Create(context.Background(), caller, validInput())
			if err != nil {
				t.Fatal(err)
			}
			if req.Status != model.RequestApproved {
				t.Errorf("got %s, want APPROVED", req.Status)
			}
			if req.Reviewer != caller.Username {
				t.Errorf("reviewer = %q, want self-approval by %q", req.Reviewer, caller.Username)
			}

			excs := store.Exceptions()
			if len(excs) != 1 {
				t.Fatalf("auto-approval should create exactly one exception, found %d", len(excs))
			}
			if excs[0].RequestKey != req.Key {
				t.Errorf("exception traces to %q, want %q", excs[0].RequestKey, req.Key)
			}
			if !excs[0].IsActive(testNow) {
				t.Error("materialized exception should be active")
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	wf, _ := newTestWorkflow(t)

	tests := []struct {
		name   string
		mutate func(*exceptions.CreateInput)
	}{
		{"short justification", func(in *exceptions.CreateInput) { in.Justification = "too short" }},
		{"oversized justification", func(in *exceptions.CreateInput) { in.Justification = strings.Repeat("x", 3000) }},
		{"empty target", func(in *exceptions.CreateInput) { in.Target = "  " }},
		{"unknown scope", func(in *exceptions.CreateInput) { in.Scope = model.ExceptionScope("bogus") }},
		{"past expiration", func(in *exceptions.CreateInput) { in.ExpiresAt = testNow.Add(-time.Hour) }},
		{"expiration exactly now", func(in *exceptions.CreateInput) { in.ExpiresAt = testNow }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := wf.Create(context.Background(), requester, in)
			if !apperrors.IsValidation(err) {
				t.Errorf("got %v, want validation error", err)
			}
		})
	}
}

func TestDuplicateActiveRequest(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	ctx := context.Background()

	first, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := wf.Create(ctx, requester, validInput()); !apperrors.IsDuplicateRequest(err) {
		t.Fatalf("second active request for same target: got %v, want duplicate error", err)
	}

	// A different requester is not blocked by alice's pending request.
	other := model.Caller{Username: "dave", Role: model.RoleUser}
	if _, err := wf.Create(ctx, other, validInput()); err != nil {
		t.Fatalf("other requester should not be blocked: %v", err)
	}

	// Once the slot is freed by cancellation, a new request may be filed.
	if _, err := wf.Cancel(ctx, requester, first.Key); err != nil {
		t.Fatal(err)
	}
	if _, err := wf.Create(ctx, requester, validInput()); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
}

func TestApprovedRequestHoldsSlotUntilExpiry(t *testing.T) {
	store := memstore.New()
	now := testNow
	wf := exceptions.NewWorkflow(store, zap.NewNop().Sugar()).
		WithClock(func() time.Time { return now })
	ctx := context.Background()

	req, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wf.Approve(ctx, reviewer, req.Key, req.Version, ""); err != nil {
		t.Fatal(err)
	}

	// The approval did not free the (requester, target) slot.
	if _, err := wf.Create(ctx, requester, validInput()); !apperrors.IsDuplicateRequest(err) {
		t.Fatalf("create while approved and unexpired: got %v, want duplicate error", err)
	}

	// The auto-approval fast path occupies the slot the same way.
	if _, err := wf.Create(ctx, admin, validInput()); err != nil {
		t.Fatal(err)
	}
	if _, err := wf.Create(ctx, admin, validInput()); !apperrors.IsDuplicateRequest(err) {
		t.Fatalf("create over auto-approved request: got %v, want duplicate error", err)
	}

	// Once the exception lapses, a renewal request may be filed.
	now = testNow.Add(31 * 24 * time.Hour)
	renewal := validInput()
	renewal.ExpiresAt = now.Add(30 * 24 * time.Hour)
	if _, err := wf.Create(ctx, requester, renewal); err != nil {
		t.Fatalf("create after approval lapsed: %v", err)
	}
}

func TestApproveMaterializesException(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	req, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}

	updated, err := wf.Approve(ctx, reviewer, req.Key, req.Version, "risk accepted")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != model.RequestApproved || updated.Version != 2 {
		t.Errorf("got %s v%d, want APPROVED v2", updated.Status, updated.Version)
	}
	if updated.Reviewer != reviewer.Username {
		t.Errorf("reviewer = %q, want %q", updated.Reviewer, reviewer.Username)
	}

	excs := store.Exceptions()
	if len(excs) != 1 {
		t.Fatalf("approval should create exactly one exception, found %d", len(excs))
	}
	if excs[0].Target != req.Target || excs[0].Scope != req.Scope {
		t.Errorf("exception %+v does not mirror its request", excs[0])
	}
	if !excs[0].ExpiresAt.Equal(req.ExpiresAt) {
		t.Errorf("exception expires %v, want requested %v", excs[0].ExpiresAt, req.ExpiresAt)
	}
}

func TestReviewRequiresReviewerRole(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	ctx := context.Background()

	req, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := wf.Approve(ctx, requester, req.Key, req.Version, ""); !apperrors.IsForbidden(err) {
		t.Errorf("approve by plain user: got %v, want forbidden", err)
	}
	if _, err := wf.Reject(ctx, requester, req.Key, req.Version, "not acceptable"); !apperrors.IsForbidden(err) {
		t.Errorf("reject by plain user: got %v, want forbidden", err)
	}
	if _, err := wf.ListPending(ctx, requester); !apperrors.IsForbidden(err) {
		t.Errorf("list pending by plain user: got %v, want forbidden", err)
	}
}

func TestRejectRequiresComment(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	req, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := wf.Reject(ctx, reviewer, req.Key, req.Version, "   "); !apperrors.IsValidation(err) {
		t.Fatalf("empty rejection comment: got %v, want validation error", err)
	}
	if _, err := wf.Reject(ctx, reviewer, req.Key, req.Version, "too short"); !apperrors.IsValidation(err) {
		t.Fatalf("nine-character comment: got %v, want validation error", err)
	}

	updated, err := wf.Reject(ctx, reviewer, req.Key, req.Version, "insufficient compensating controls")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != model.RequestRejected {
		t.Errorf("got %s, want REJECTED", updated.Status)
	}
	if excs := store.Exceptions(); len(excs) != 0 {
		t.Errorf("rejection must not materialize an exception, found %d", len(excs))
	}
}

func TestTerminalStatesRefuseFurtherTransitions(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	ctx := context.Background()

	req, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wf.Reject(ctx, reviewer, req.Key, req.Version, "insufficient justification"); err != nil {
		t.Fatal(err)
	}

	if _, err := wf.Approve(ctx, reviewer, req.Key, 2, ""); !apperrors.IsInvalidTransition(err) {
		t.Errorf("approve after reject: got %v, want invalid transition", err)
	}
	if _, err := wf.Cancel(ctx, requester, req.Key); !apperrors.IsInvalidTransition(err) {
		t.Errorf("cancel after reject: got %v, want invalid transition", err)
	}
}

func TestStaleVersionConflicts(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	ctx := context.Background()

	req, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := wf.Approve(ctx, reviewer, req.Key, req.Version+7, ""); !apperrors.IsConflict(err) {
		t.Errorf("wrong version: got %v, want conflict", err)
	}
	if _, err := wf.Approve(ctx, reviewer, "no-such-key", 1, ""); !apperrors.IsNotFound(err) {
		t.Errorf("missing request: got %v, want not found", err)
	}
}

func TestConcurrentResolutionFirstCommitterWins(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	req, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}

	second := model.Caller{Username: "root", Role: model.RoleAdmin}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = wf.Approve(ctx, reviewer, req.Key, req.Version, "")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = wf.Reject(ctx, second, req.Key, req.Version, "duplicate of earlier request")
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !apperrors.IsInvalidTransition(err) && !apperrors.IsConflict(err) {
			t.Errorf("loser should see transition or conflict error, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one resolution must win, got %d", succeeded)
	}

	// At most one exception regardless of which transition won.
	if excs := store.Exceptions(); len(excs) > 1 {
		t.Errorf("found %d exceptions after race, want at most 1", len(excs))
	}
}

func TestCancelOnlyByRequester(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	ctx := context.Background()

	req, err := wf.Create(ctx, requester, validInput())
	if err != nil {
		t.Fatal(err)
	}

	// Another user gets not-found, not forbidden, so the request's existence
	// is not leaked.
	other := model.Caller{Username: "dave", Role: model.RoleUser}
	if _, err := wf.Cancel(ctx, other, req.Key); !apperrors.IsNotFound(err) {
		t.Fatalf("cancel by non-requester: got %v, want not found", err)
	}

	updated, err := wf.Cancel(ctx, requester, req.Key)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != model.RequestCancelled {
		t.Errorf("got %s, want CANCELLED", updated.Status)
	}
}

func TestExpireSweep(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	ctx := context.Background()

	in := validInput()
	in.ExpiresAt = testNow.Add(time.Hour)
	req, err := wf.Create(ctx, reviewer, in)
	if err != nil {
		t.Fatal(err)
	}

	// Nothing lapses while the exception is still active.
	count, err := wf.ExpireSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("sweep before expiry flipped %d requests, want 0", count)
	}

	wf.WithClock(func() time.Time { return testNow.Add(2 * time.Hour) })
	count, err = wf.ExpireSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("sweep after expiry flipped %d requests, want 1", count)
	}

	got, err := wf.ListMine(ctx, reviewer, model.RequestExpired)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Key != req.Key {
		t.Errorf("expired request %s should appear in EXPIRED listing", req.Key)
	}
}

func TestListPendingOldestFirst(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	ctx := context.Background()

	in := validInput()
	if _, err := wf.Create(ctx, requester, in); err != nil {
		t.Fatal(err)
	}
	wf.WithClock(func() time.Time { return testNow.Add(time.Minute) })
	in2 := validInput()
	in2.Target = "CVE-2024-0002"
	if _, err := wf.Create(ctx, requester, in2); err != nil {
		t.Fatal(err)
	}

	pending, err := wf.ListPending(ctx, reviewer)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}
	if !pending[0].CreatedAt.Before(pending[1].CreatedAt) {
		t.Error("pending requests should list oldest first")
	}
}
