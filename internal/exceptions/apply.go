package exceptions

import (
	"time"

	"github.com/vulnops/vulnmgt-backend/model"
)

// applyException is the application engine: the deterministic 1:1 mapping
// from an approved request to its standing suppression rule. The store
// persists the result in the same atomic unit as the APPROVED transition, so
// no approved request can exist without its exception or vice versa.
// RequestKey is filled by the store when the request key is not yet assigned.
func applyException(req *model.ExceptionRequest, now time.Time) *model.Exception {
	return &model.Exception{
		Scope:         req.Scope,
		Target:        req.Target,
		ExpiresAt:     req.ExpiresAt,
		Justification: req.Justification,
		CreatedBy:     req.Requester,
		RequestKey:    req.Key,
		ObjType:       "Exception",
		CreatedAt:     now,
	}
}
