// Package model - Asset defines the struct for tracked infrastructure assets.
package model

import "time"

// Asset represents a host or service that findings attach to.
// Assets are owned by the ingestion subsystem; this backend reads them to
// resolve access scope and aggregate overdue findings.
type Asset struct {
	Key            string    `json:"_key,omitempty"`
	Name           string    `json:"name"`                       // Hostname, e.g. "WebServer01"
	LocalIP        string    `json:"local_ip,omitempty"`         // e.g. "10.0.1.100"
	OSVersion      string    `json:"os_version,omitempty"`       // e.g. "Ubuntu 22.04 LTS"
	Owner          string    `json:"owner"`                      // Username of the creating user
	UploadedBy     string    `json:"uploaded_by,omitempty"`      // Username that uploaded the discovering scan
	Workgroups     []string  `json:"workgroups,omitempty"`       // Host group names, e.g. "Database Servers"
	CloudAccountID string    `json:"cloud_account_id,omitempty"` // e.g. "aws-account-prod-001"
	Domain         string    `json:"domain,omitempty"`           // Active Directory domain, e.g. "corp.example.com"
	ObjType        string    `json:"objtype,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewAsset creates a new Asset with default values
func NewAsset(name, owner string) *Asset {
	now := time.Now().UTC()
	return &Asset{
		Name:       name,
		Owner:      owner,
		Workgroups: []string{},
		ObjType:    "Asset",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
