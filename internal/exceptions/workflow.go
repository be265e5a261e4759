package exceptions

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/vulnops/vulnmgt-backend/internal/errors"
	"github.com/vulnops/vulnmgt-backend/internal/observability"
	"github.com/vulnops/vulnmgt-backend/model"
)

// Validation bounds for free-text fields
const (
	minJustificationLen = 50
	maxJustificationLen = 2048
	minRejectCommentLen = 10
	maxCommentLen       = 1024
)

// Workflow is the exception request state machine. All mutable state lives in
// the store; the workflow itself is stateless and safe for concurrent use.
type Workflow struct {
	store Store
	clock func() time.Time
	log   *zap.SugaredLogger
}

// NewWorkflow wires the state machine to its store.
func NewWorkflow(store Store, log *zap.SugaredLogger) *Workflow {
	return &Workflow{store: store, clock: func() time.Time { return time.Now().UTC() }, log: log}
}

// WithClock overrides the time source. Test hook.
func (w *Workflow) WithClock(clock func() time.Time) *Workflow {
	w.clock = clock
	return w
}

// CreateInput carries the caller-supplied fields of a new request.
type CreateInput struct {
	Target        string
	Scope         model.ExceptionScope
	Justification string
	ExpiresAt     time.Time
}

// Create validates and persists a new exception request. Callers holding an
// auto-approval-eligible role get the fast path: the request is created
// already APPROVED with its exception materialized in the same atomic store
// operation, so no PENDING intermediate is ever visible to other callers.
func (w *Workflow) Create(ctx context.Context, caller model.Caller, in CreateInput) (*model.ExceptionRequest, error) {
	if !roleAllowed(opCreate, caller.Role) {
		observability.ObserveTransition(opCreate, "denied")
		return nil, apperrors.Forbiddenf("role %q may not create exception requests", caller.Role)
	}

	now := w.clock()
	if err := validateCreate(in, now); err != nil {
		return nil, err
	}

	req := model.NewExceptionRequest(caller.Username, strings.TrimSpace(in.Target), in.Scope, strings.TrimSpace(in.Justification), in.ExpiresAt)
	req.CreatedAt = now
	req.UpdatedAt = now

	if roleAllowed(opAutoApprove, caller.Role) {
		req.Status = model.RequestApproved
		req.Reviewer = caller.Username
		exc := applyException(req, now)
		if err := w.store.CreateApproved(ctx, req, exc); err != nil {
			observability.ObserveTransition(opAutoApprove, "error")
			return nil, err
		}
		observability.ObserveTransition(opAutoApprove, "ok")
		w.log.Infow("exception request auto-approved",
			"request", req.Key, "requester", req.Requester, "scope", req.Scope, "target", req.Target)
		return req, nil
	}

	if err := w.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	observability.ObserveTransition(opCreate, "ok")
	w.log.Infow("exception request created",
		"request", req.Key, "requester", req.Requester, "scope", req.Scope, "target", req.Target)
	return req, nil
}

// Approve transitions a PENDING request to APPROVED and materializes its
// exception. The caller must present the version it last read; if another
// reviewer resolved the request first, the store reports a conflict and
// nothing is written.
func (w *Workflow) Approve(ctx context.Context, caller model.Caller, key string, version int64, comment string) (*model.ExceptionRequest, error) {
	if !roleAllowed(opReview, caller.Role) {
		observability.ObserveTransition("approve", "denied")
		return nil, apperrors.Forbiddenf("role %q may not review exception requests", caller.Role)
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLen {
		return nil, apperrors.Validationf("review comment exceeds %d characters", maxCommentLen)
	}

	req, err := w.store.GetRequest(ctx, key)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NotFoundf("exception request %s", key)
	}

	// The exception is built from the fetched document. Only resolution
	// transitions mutate a request, and any concurrent resolution makes the
	// CAS below fail, so these fields cannot go stale between read and write.
	now := w.clock()
	exc := applyException(req, now)

	updated, err := w.store.ResolveRequestCAS(ctx, key, version, Resolution{
		Status:   model.RequestApproved,
		Reviewer: caller.Username,
		Comment:  comment,
		At:       now,
	}, exc)
	if err != nil {
		observability.ObserveTransition("approve", resultLabel(err))
		return nil, err
	}
	observability.ObserveTransition("approve", "ok")
	w.log.Infow("exception request approved", "request", key, "reviewer", caller.Username)
	return updated, nil
}

// Reject transitions a PENDING request to REJECTED. The review comment is
// mandatory on rejection.
func (w *Workflow) Reject(ctx context.Context, caller model.Caller, key string, version int64, comment string) (*model.ExceptionRequest, error) {
	if !roleAllowed(opReview, caller.Role) {
		observability.ObserveTransition("reject", "denied")
		return nil, apperrors.Forbiddenf("role %q may not review exception requests", caller.Role)
	}
	comment = strings.TrimSpace(comment)
	if len(comment) < minRejectCommentLen {
		return nil, apperrors.Validationf("rejection comment must be at least %d characters", minRejectCommentLen)
	}
	if len(comment) > maxCommentLen {
		return nil, apperrors.Validationf("review comment exceeds %d characters", maxCommentLen)
	}

	updated, err := w.store.ResolveRequestCAS(ctx, key, version, Resolution{
		Status:   model.RequestRejected,
		Reviewer: caller.Username,
		Comment:  comment,
		At:       w.clock(),
	}, nil)
	if err != nil {
		observability.ObserveTransition("reject", resultLabel(err))
		return nil, err
	}
	observability.ObserveTransition("reject", "ok")
	w.log.Infow("exception request rejected", "request", key, "reviewer", caller.Username)
	return updated, nil
}

// Cancel withdraws a PENDING request. Only the original requester may cancel;
// for anyone else the request is reported as not found so its existence is
// not leaked.
func (w *Workflow) Cancel(ctx context.Context, caller model.Caller, key string) (*model.ExceptionRequest, error) {
	if !roleAllowed(opCancel, caller.Role) {
		observability.ObserveTransition(opCancel, "denied")
		return nil, apperrors.Forbiddenf("role %q may not cancel exception requests", caller.Role)
	}

	req, err := w.store.GetRequest(ctx, key)
	if err != nil {
		return nil, err
	}
	if req == nil || req.Requester != caller.Username {
		return nil, apperrors.NotFoundf("exception request %s", key)
	}
	if req.Status != model.RequestPending {
		return nil, apperrors.Transitionf("cannot cancel request in status %s", req.Status)
	}

	updated, err := w.store.ResolveRequestCAS(ctx, key, req.Version, Resolution{
		Status:   model.RequestCancelled,
		Reviewer: caller.Username,
		At:       w.clock(),
	}, nil)
	if err != nil {
		observability.ObserveTransition(opCancel, resultLabel(err))
		return nil, err
	}
	observability.ObserveTransition(opCancel, "ok")
	w.log.Infow("exception request cancelled", "request", key, "requester", caller.Username)
	return updated, nil
}

// ListMine returns the caller's own requests, optionally filtered by status.
func (w *Workflow) ListMine(ctx context.Context, caller model.Caller, status model.RequestStatus) ([]model.ExceptionRequest, error) {
	return w.store.ListRequestsByRequester(ctx, caller.Username, status)
}

// ListPending returns all requests awaiting review. Reviewer-role only.
func (w *Workflow) ListPending(ctx context.Context, caller model.Caller) ([]model.ExceptionRequest, error) {
	if !roleAllowed(opListPending, caller.Role) {
		return nil, apperrors.Forbiddenf("role %q may not list pending exception requests", caller.Role)
	}
	return w.store.ListPendingRequests(ctx)
}

// ExpireSweep marks APPROVED requests whose exception has lapsed as EXPIRED.
// A delayed sweep never causes incorrect suppression: the query facade checks
// the exception's own expiration at read time.
func (w *Workflow) ExpireSweep(ctx context.Context) (int, error) {
	count, err := w.store.MarkExpired(ctx, w.clock())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		w.log.Infow("expired exception requests swept", "count", count)
	}
	return count, nil
}

func validateCreate(in CreateInput, now time.Time) error {
	if _, ok := model.ParseExceptionScope(string(in.Scope)); !ok {
		return apperrors.Validationf("unknown exception scope %q", in.Scope)
	}
	if strings.TrimSpace(in.Target) == "" {
		return apperrors.Validationf("target is required")
	}
	just := strings.TrimSpace(in.Justification)
	if len(just) < minJustificationLen {
		return apperrors.Validationf("justification must be at least %d characters", minJustificationLen)
	}
	if len(just) > maxJustificationLen {
		return apperrors.Validationf("justification exceeds %d characters", maxJustificationLen)
	}
	if !in.ExpiresAt.After(now) {
		return apperrors.Validationf("expiration must be in the future")
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case apperrors.IsConflict(err):
		return "conflict"
	case apperrors.IsInvalidTransition(err):
		return "invalid-state"
	case apperrors.IsNotFound(err):
		return "not-found"
	default:
		return "error"
	}
}
