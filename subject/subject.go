// Package subject defines the User and UserGroup entities whose access
// is evaluated. Both originate in the host application and keep their
// relational int64 keys; bastion mirrors the fields it needs.
package subject

import "time"

// DefaultUsername names the sentinel user whose grants form the
// permission baseline for anonymous access and the fallback for
// resources with no explicit grant.
const DefaultUsername = "default"

// User is an individual account.
type User struct {
	ID       int64  `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Username string `json:"username" db:"username"`

	// IsAdmin marks a global administrator; admins resolve to the
	// maximum level on every resource unconditionally.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// InheritDefaultPermissions controls fallback to the default
	// user's grants and IP ranges.
	InheritDefaultPermissions bool `json:"inherit_default_permissions" db:"inherit_default_permissions"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsDefault reports whether this is the sentinel default user.
func (u *User) IsDefault() bool { return u.Username == DefaultUsername }

// UserGroup is a named set of users. Grants to a group apply to every
// member; the group itself is also a protected resource.
type UserGroup struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   int64     `json:"owner_id,omitempty" db:"owner_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ListFilter contains filters for listing users.
type ListFilter struct {
	TenantID string `json:"tenant_id,omitempty"`
	IsAdmin  *bool  `json:"is_admin,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
