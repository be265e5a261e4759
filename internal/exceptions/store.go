// Package exceptions implements the exception request workflow: creation,
// review, terminal resolution, and the materialization of approved requests
// into standing suppression rules.
package exceptions

import (
	"context"
	"time"

	"github.com/vulnops/vulnmgt-backend/model"
)

// Resolution carries the fields a review transition writes onto a request.
type Resolution struct {
	Status   model.RequestStatus
	Reviewer string
	Comment  string
	At       time.Time
}

// Store persists requests and exceptions. Implementations must provide
// compare-and-swap semantics: every write that presents an expected version
// either commits with version+1 or fails without side effects.
type Store interface {
	// CreateRequest inserts a PENDING request. It fails with
	// ErrDuplicateRequest when an active request already exists for the same
	// (requester, target) pair: one that is PENDING, or APPROVED with an
	// unexpired exception. The request's CreatedAt is the reference instant.
	CreateRequest(ctx context.Context, req *model.ExceptionRequest) error

	// CreateApproved inserts an already-APPROVED request together with its
	// exception in one atomic operation, applying the same duplicate rule.
	// No PENDING intermediate is ever observable.
	CreateApproved(ctx context.Context, req *model.ExceptionRequest, exc *model.Exception) error

	// GetRequest returns nil, nil when the request does not exist.
	GetRequest(ctx context.Context, key string) (*model.ExceptionRequest, error)

	// ListRequestsByRequester returns the requester's requests, newest first,
	// optionally filtered by status ("" means all).
	ListRequestsByRequester(ctx context.Context, requester string, status model.RequestStatus) ([]model.ExceptionRequest, error)

	// ListPendingRequests returns all PENDING requests, oldest first.
	ListPendingRequests(ctx context.Context) ([]model.ExceptionRequest, error)

	// ResolveRequestCAS transitions one PENDING request to a terminal state,
	// guarded by the optimistic version. When exc is non-nil it is inserted
	// in the same atomic unit (the approve path). Returns the updated
	// request, or ErrNotFound / ErrInvalidTransition / ErrConflict.
	ResolveRequestCAS(ctx context.Context, key string, expectedVersion int64, res Resolution, exc *model.Exception) (*model.ExceptionRequest, error)

	// MarkExpired flips APPROVED requests whose exception expiration has
	// passed to EXPIRED and returns how many were flipped. Bookkeeping only;
	// enforcement of expiry happens at read time.
	MarkExpired(ctx context.Context, now time.Time) (int, error)

	// ActiveExceptions returns all exceptions whose expiration is after now.
	ActiveExceptions(ctx context.Context, now time.Time) ([]model.Exception, error)
}
