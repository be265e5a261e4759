// Package memstore is an in-memory implementation of the persistence
// interfaces: the access directory, the exception workflow store, and the
// aggregate rebuild sources. A single mutex guards every operation, so the
// compare-and-swap semantics match the database-backed stores. Used by unit
// tests and local development.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/vulnops/vulnmgt-backend/internal/errors"
	"github.com/vulnops/vulnmgt-backend/internal/exceptions"
	"github.com/vulnops/vulnmgt-backend/model"
)

// Store holds every collection in maps keyed the way the database keys them.
type Store struct {
	mu         sync.Mutex
	users      map[string]model.User      // by username
	assets     map[string]model.Asset     // by key
	findings   map[string][]model.Finding // by asset key
	requests   map[string]model.ExceptionRequest
	exceptions map[string]model.Exception
	seq        int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:      map[string]model.User{},
		assets:     map[string]model.Asset{},
		findings:   map[string][]model.Finding{},
		requests:   map[string]model.ExceptionRequest{},
		exceptions: map[string]model.Exception{},
	}
}

func (s *Store) nextKey(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

//
// Seeding helpers
//

// PutUser stores a user, keyed by username.
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Key == "" {
		u.Key = s.nextKey("user")
	}
	s.users[u.Username] = u
}

// PutAsset stores an asset, assigning a key when absent, and returns the key.
func (s *Store) PutAsset(a model.Asset) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Key == "" {
		a.Key = s.nextKey("asset")
	}
	s.assets[a.Key] = a
	return a.Key
}

// PutFinding stores a finding under its asset, assigning a key when absent,
// and returns the key.
func (s *Store) PutFinding(f model.Finding) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Key == "" {
		f.Key = s.nextKey("finding")
	}
	s.findings[f.AssetID] = append(s.findings[f.AssetID], f)
	return f.Key
}

// PutException stores an exception directly, bypassing the workflow. Test
// seeding only.
func (s *Store) PutException(e model.Exception) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Key == "" {
		e.Key = s.nextKey("exception")
	}
	s.exceptions[e.Key] = e
	return e.Key
}

// Exceptions returns all stored exceptions regardless of expiration.
func (s *Store) Exceptions() []model.Exception {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Exception, 0, len(s.exceptions))
	for _, e := range s.exceptions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

//
// access.DirectoryStore
//

// UserByUsername returns nil, nil when the user does not exist.
func (s *Store) UserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	out := u
	return &out, nil
}

func (s *Store) assetIDsWhere(match func(*model.Asset) bool) []string {
	var out []string
	for key, a := range s.assets {
		a := a
		if match(&a) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// AssetIDsByWorkgroups returns assets sharing at least one workgroup.
func (s *Store) AssetIDsByWorkgroups(_ context.Context, workgroups []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]struct{}{}
	for _, wg := range workgroups {
		want[wg] = struct{}{}
	}
	return s.assetIDsWhere(func(a *model.Asset) bool {
		for _, wg := range a.Workgroups {
			if _, ok := want[wg]; ok {
				return true
			}
		}
		return false
	}), nil
}

// AssetIDsByOwner returns assets owned by the username.
func (s *Store) AssetIDsByOwner(_ context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assetIDsWhere(func(a *model.Asset) bool { return a.Owner == username }), nil
}

// AssetIDsByUploader returns assets whose discovering scan the username uploaded.
func (s *Store) AssetIDsByUploader(_ context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assetIDsWhere(func(a *model.Asset) bool { return a.UploadedBy == username }), nil
}

// AssetIDsByCloudAccounts returns assets in any of the cloud accounts.
func (s *Store) AssetIDsByCloudAccounts(_ context.Context, accounts []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]struct{}{}
	for _, acct := range accounts {
		want[acct] = struct{}{}
	}
	return s.assetIDsWhere(func(a *model.Asset) bool {
		_, ok := want[a.CloudAccountID]
		return ok && a.CloudAccountID != ""
	}), nil
}

// AssetIDsByDomains returns assets in any of the directory domains.
func (s *Store) AssetIDsByDomains(_ context.Context, domains []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]struct{}{}
	for _, d := range domains {
		want[d] = struct{}{}
	}
	return s.assetIDsWhere(func(a *model.Asset) bool {
		_, ok := want[a.Domain]
		return ok && a.Domain != ""
	}), nil
}

//
// aggregate.FindingSource
//

// ListAssets returns the asset inventory in ascending key order.
func (s *Store) ListAssets(_ context.Context) ([]model.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ListFindingsByAsset returns the findings recorded against one asset.
func (s *Store) ListFindingsByAsset(_ context.Context, assetID string) ([]model.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.findings[assetID]
	out := make([]model.Finding, len(src))
	copy(out, src)
	return out, nil
}

//
// exceptions.Store
//

func (s *Store) hasActiveRequest(requester, target string, now time.Time) bool {
	for _, r := range s.requests {
		if r.Requester == requester && r.Target == target && r.IsActive(now) {
			return true
		}
	}
	return false
}

// CreateRequest inserts a PENDING request, enforcing the one-active-request
// rule per (requester, target).
func (s *Store) CreateRequest(_ context.Context, req *model.ExceptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasActiveRequest(req.Requester, req.Target, req.CreatedAt) {
		return apperrors.Duplicatef("active request for target %s already exists", req.Target)
	}
	req.Key = s.nextKey("request")
	s.requests[req.Key] = *req
	return nil
}

// CreateApproved inserts an APPROVED request and its exception in one step.
func (s *Store) CreateApproved(_ context.Context, req *model.ExceptionRequest, exc *model.Exception) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasActiveRequest(req.Requester, req.Target, req.CreatedAt) {
		return apperrors.Duplicatef("active request for target %s already exists", req.Target)
	}
	req.Key = s.nextKey("request")
	exc.Key = s.nextKey("exception")
	exc.RequestKey = req.Key
	s.requests[req.Key] = *req
	s.exceptions[exc.Key] = *exc
	return nil
}

// GetRequest returns nil, nil when the request does not exist.
func (s *Store) GetRequest(_ context.Context, key string) (*model.ExceptionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[key]
	if !ok {
		return nil, nil
	}
	out := r
	return &out, nil
}

// ListRequestsByRequester returns the requester's requests, newest first.
func (s *Store) ListRequestsByRequester(_ context.Context, requester string, status model.RequestStatus) ([]model.ExceptionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ExceptionRequest
	for _, r := range s.requests {
		if r.Requester != requester {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key > out[j].Key
	})
	return out, nil
}

// ListPendingRequests returns all PENDING requests, oldest first.
func (s *Store) ListPendingRequests(_ context.Context) ([]model.ExceptionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ExceptionRequest
	for _, r := range s.requests {
		if r.Status == model.RequestPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// ResolveRequestCAS transitions one PENDING request guarded by the version
// counter, inserting the exception in the same critical section when given.
func (s *Store) ResolveRequestCAS(_ context.Context, key string, expectedVersion int64, res exceptions.Resolution, exc *model.Exception) (*model.ExceptionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[key]
	switch {
	case !ok:
		return nil, apperrors.NotFoundf("exception request %s", key)
	case r.Status != model.RequestPending:
		return nil, apperrors.Transitionf("request %s is %s", key, r.Status)
	case r.Version != expectedVersion:
		return nil, apperrors.Conflictf("request %s is at version %d, caller presented %d", key, r.Version, expectedVersion)
	}

	r.Status = res.Status
	r.Reviewer = res.Reviewer
	r.ReviewComment = res.Comment
	r.Version++
	r.UpdatedAt = res.At
	s.requests[key] = r

	if exc != nil {
		stored := *exc
		stored.Key = s.nextKey("exception")
		stored.RequestKey = key
		s.exceptions[stored.Key] = stored
		exc.Key = stored.Key
		exc.RequestKey = key
	}

	out := r
	return &out, nil
}

// MarkExpired flips lapsed APPROVED requests to EXPIRED.
func (s *Store) MarkExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for key, r := range s.requests {
		if r.Status != model.RequestApproved || now.Before(r.ExpiresAt) {
			continue
		}
		r.Status = model.RequestExpired
		r.Version++
		r.UpdatedAt = now
		s.requests[key] = r
		count++
	}
	return count, nil
}

// ActiveExceptions returns the exceptions whose expiration is after now.
func (s *Store) ActiveExceptions(_ context.Context, now time.Time) ([]model.Exception, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Exception
	for _, e := range s.exceptions {
		if e.IsActive(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
