package exceptions

import "github.com/vulnops/vulnmgt-backend/model"

// Workflow operations, used as keys of the capability table
const (
	opCreate      = "create"
	opAutoApprove = "auto-approve"
	opReview      = "review"
	opListPending = "list-pending"
	opCancel      = "cancel"
)

// requiredRoles is the explicit operation-to-roles authorization table. Every
// operation declares its allowed role set here; nothing is derived at runtime.
var requiredRoles = map[string][]string{
	opCreate:      {model.RoleAdmin, model.RoleSecurityOfficer, model.RoleUser},
	opAutoApprove: {model.RoleAdmin, model.RoleSecurityOfficer},
	opReview:      {model.RoleAdmin, model.RoleSecurityOfficer},
	opListPending: {model.RoleAdmin, model.RoleSecurityOfficer},
	opCancel:      {model.RoleAdmin, model.RoleSecurityOfficer, model.RoleUser},
}

func roleAllowed(op, role string) bool {
	for _, r := range requiredRoles[op] {
		if r == role {
			return true
		}
	}
	return false
}
