// Package resource defines the Repository and RepoGroup entities being
// protected. Repository groups nest arbitrarily deep via parent IDs;
// permission resolution walks the chain nearest-first.
package resource

import "time"

// Repository is a single hosted repository.
type Repository struct {
	ID       int64  `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`

	// RepoGroupID points at the containing repo group, nil for
	// top-level repositories.
	RepoGroupID *int64 `json:"repo_group_id,omitempty" db:"repo_group_id"`

	// Private repositories never inherit a public default: anonymous
	// access resolves to none unless the default user holds an
	// explicit grant.
	Private bool `json:"private" db:"private"`

	Archived  bool      `json:"archived" db:"archived"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RepoGroup is a repository group, nestable via ParentID.
type RepoGroup struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	ParentID  *int64    `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ListFilter contains filters for listing repositories.
type ListFilter struct {
	TenantID    string `json:"tenant_id,omitempty"`
	RepoGroupID *int64 `json:"repo_group_id,omitempty"`
	Private     *bool  `json:"private,omitempty"`
	Search      string `json:"search,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}
