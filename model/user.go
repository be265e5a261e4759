// Package model - User defines accounts, roles, and the caller identity.
package model

import "time"

// Roles authorized against the workflow capability table and route guards.
const (
	// RoleAdmin sees every asset and may perform every operation.
	RoleAdmin = "admin"
	// RoleSecurityOfficer reviews exception requests; their own are auto-approved.
	RoleSecurityOfficer = "security-officer"
	// RoleUser requests exceptions and sees only assets in their access scope.
	RoleUser = "user"
)

// User represents a user of the system
type User struct {
	Key           string    `json:"_key,omitempty"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	PasswordHash  string    `json:"password_hash,omitempty"`
	Role          string    `json:"role"`
	Workgroups    []string  `json:"workgroups,omitempty"`     // Host group names granting asset visibility
	CloudAccounts []string  `json:"cloud_accounts,omitempty"` // Cloud service account ids granting asset visibility
	Domains       []string  `json:"domains,omitempty"`        // AD domains granting asset visibility
	IsActive      bool      `json:"is_active"`
	AuthProvider  string    `json:"auth_provider,omitempty"`
	ObjType       string    `json:"objtype,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values
func NewUser(username, email, role string) *User {
	now := time.Now().UTC()
	return &User{
		Username:     username,
		Email:        email,
		Role:         role,
		IsActive:     true,
		AuthProvider: "local",
		ObjType:      "User",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Caller is the authenticated identity attached to a request after token
// verification. It carries only what authorization decisions need.
type Caller struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
