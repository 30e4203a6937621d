// Package grant defines the permission Grant entity: one stored
// permission assignment for one subject on one resource.
package grant

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Grant binds a permission level to a (subject, resource) pair. At most
// one grant is active per pair; upserts replace, never duplicate.
type Grant struct {
	ID       id.GrantID `json:"id" db:"id"`
	TenantID string     `json:"tenant_id" db:"tenant_id"`

	SubjectKind string `json:"subject_kind" db:"subject_kind"`
	SubjectID   int64  `json:"subject_id" db:"subject_id"`

	ResourceKind string `json:"resource_kind" db:"resource_kind"`
	ResourceID   int64  `json:"resource_id" db:"resource_id"`

	// Permission is a level name on the resource kind's scale,
	// validated at the engine boundary before any write.
	Permission string `json:"permission" db:"permission"`

	// IsDefault marks grants belonging to the default-user baseline.
	IsDefault bool `json:"is_default" db:"is_default"`

	GrantedBy string    `json:"granted_by,omitempty" db:"granted_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Key identifies the (subject, resource) pair of a grant.
type Key struct {
	SubjectKind  string `json:"subject_kind"`
	SubjectID    int64  `json:"subject_id"`
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
}

// Key returns the grant's pair key.
func (g *Grant) Key() Key {
	return Key{
		SubjectKind:  g.SubjectKind,
		SubjectID:    g.SubjectID,
		ResourceKind: g.ResourceKind,
		ResourceID:   g.ResourceID,
	}
}

// OpKind distinguishes batch operation types.
type OpKind string

const (
	// OpUpsert creates or replaces the grant for the pair.
	OpUpsert OpKind = "upsert"

	// OpRemove deletes the grant for the pair. No-op if absent.
	OpRemove OpKind = "remove"
)

// Op is one element of an all-or-nothing grant batch.
type Op struct {
	Kind       OpKind `json:"kind"`
	Key        Key    `json:"key"`
	Permission string `json:"permission,omitempty"` // empty for remove
	GrantedBy  string `json:"granted_by,omitempty"`
}

// ListFilter contains filters for listing grants.
type ListFilter struct {
	TenantID     string `json:"tenant_id,omitempty"`
	SubjectKind  string `json:"subject_kind,omitempty"`
	SubjectID    *int64 `json:"subject_id,omitempty"`
	ResourceKind string `json:"resource_kind,omitempty"`
	ResourceID   *int64 `json:"resource_id,omitempty"`
	IsDefault    *bool  `json:"is_default,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}
