// Package model - Exception workflow entities: requests and standing suppression rules.
package model

import (
	"strings"
	"time"
)

// RequestStatus is the workflow state of an ExceptionRequest
type RequestStatus string

const (
	// RequestPending means the request awaits review.
	RequestPending RequestStatus = "PENDING"
	// RequestApproved means a reviewer approved the request and an Exception exists.
	RequestApproved RequestStatus = "APPROVED"
	// RequestRejected means a reviewer rejected the request.
	RequestRejected RequestStatus = "REJECTED"
	// RequestCancelled means the requester withdrew the request.
	RequestCancelled RequestStatus = "CANCELLED"
	// RequestExpired means the request was approved and its Exception has since lapsed.
	RequestExpired RequestStatus = "EXPIRED"
)

// ParseRequestStatus normalizes a status string to a known workflow state.
func ParseRequestStatus(raw string) (RequestStatus, bool) {
	switch RequestStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case RequestPending:
		return RequestPending, true
	case RequestApproved:
		return RequestApproved, true
	case RequestRejected:
		return RequestRejected, true
	case RequestCancelled:
		return RequestCancelled, true
	case RequestExpired:
		return RequestExpired, true
	}
	return "", false
}

// ExceptionScope describes what an exception (or a request for one) targets
type ExceptionScope string

const (
	// ScopeFinding targets one specific finding by its key.
	ScopeFinding ExceptionScope = "finding"
	// ScopePattern targets a vulnerability-class pattern, e.g. "CVE-2024-0001"
	// or a wildcard prefix like "CVE-2024-*".
	ScopePattern ExceptionScope = "pattern"
	// ScopeAsset targets every finding on one asset.
	ScopeAsset ExceptionScope = "asset"
)

// ParseExceptionScope normalizes a scope string to a known scope.
func ParseExceptionScope(raw string) (ExceptionScope, bool) {
	switch ExceptionScope(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeFinding:
		return ScopeFinding, true
	case ScopePattern:
		return ScopePattern, true
	case ScopeAsset:
		return ScopeAsset, true
	}
	return "", false
}

// ExceptionRequest represents a request to suppress overdue status for a
// finding, a finding-class pattern, or an asset. Requests are never deleted;
// terminal transitions retain reviewer, comment, and timestamps for audit.
type ExceptionRequest struct {
	Key           string         `json:"_key,omitempty"`
	Requester     string         `json:"requester"`
	Target        string         `json:"target"` // finding key, pattern string, or asset key per Scope
	Scope         ExceptionScope `json:"scope"`
	Justification string         `json:"justification"`
	ExpiresAt     time.Time      `json:"expires_at"` // Requested expiration of the resulting exception
	Status        RequestStatus  `json:"status"`
	Reviewer      string         `json:"reviewer,omitempty"`
	ReviewComment string         `json:"review_comment,omitempty"`
	Version       int64          `json:"version"` // Optimistic concurrency counter
	ObjType       string         `json:"objtype,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewExceptionRequest creates a pending request with default values
func NewExceptionRequest(requester, target string, scope ExceptionScope, justification string, expiresAt time.Time) *ExceptionRequest {
	now := time.Now().UTC()
	return &ExceptionRequest{
		Requester:     requester,
		Target:        target,
		Scope:         scope,
		Justification: justification,
		ExpiresAt:     expiresAt,
		Status:        RequestPending,
		Version:       1,
		ObjType:       "ExceptionRequest",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsActive reports whether the request still occupies its (requester, target)
// slot. PENDING requests block outright; APPROVED requests block until their
// exception lapses.
func (r *ExceptionRequest) IsActive(now time.Time) bool {
	switch r.Status {
	case RequestPending:
		return true
	case RequestApproved:
		return now.Before(r.ExpiresAt)
	}
	return false
}

// IsTerminal reports whether no actor-driven transition remains.
func (r *ExceptionRequest) IsTerminal() bool {
	return r.Status == RequestRejected || r.Status == RequestCancelled || r.Status == RequestExpired
}

// Exception is a standing, time-boxed suppression rule. It is created only as
// the side effect of a request reaching APPROVED and is never deleted; expiry
// is a read-time computation.
type Exception struct {
	Key           string         `json:"_key,omitempty"`
	Scope         ExceptionScope `json:"scope"`
	Target        string         `json:"target"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Justification string         `json:"justification"`
	CreatedBy     string         `json:"created_by"`
	RequestKey    string         `json:"request_key"` // Originating ExceptionRequest
	ObjType       string         `json:"objtype,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// IsActive reports whether the exception still suppresses its target.
func (e *Exception) IsActive(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Covers reports whether the exception suppresses the given finding.
func (e *Exception) Covers(f *Finding) bool {
	switch e.Scope {
	case ScopeFinding:
		return e.Target == f.Key
	case ScopePattern:
		return MatchPattern(e.Target, f.Pattern)
	case ScopeAsset:
		return e.Target == f.AssetID
	}
	return false
}

// MatchPattern matches a finding class identifier against an exception
// pattern. A trailing "*" matches any suffix; anything else is an exact,
// case-insensitive match.
func MatchPattern(pattern, candidate string) bool {
	p := strings.ToUpper(strings.TrimSpace(pattern))
	c := strings.ToUpper(strings.TrimSpace(candidate))
	if prefix, ok := strings.CutSuffix(p, "*"); ok {
		return strings.HasPrefix(c, prefix)
	}
	return p == c
}
