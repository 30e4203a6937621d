package subject

import "context"

// Store defines persistence operations for users, user groups, and
// group membership.
type Store interface {
	// UpsertUser creates or replaces a mirrored user row.
	UpsertUser(ctx context.Context, u *User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID int64) (*User, error)

	// GetUserByUsername retrieves a user by tenant and username.
	GetUserByUsername(ctx context.Context, tenantID, username string) (*User, error)

	// GetDefaultUser retrieves the sentinel default user for a tenant.
	GetDefaultUser(ctx context.Context, tenantID string) (*User, error)

	// ListUsers returns users matching the filter.
	ListUsers(ctx context.Context, filter *ListFilter) ([]*User, error)

	// DeleteUser removes a mirrored user row.
	DeleteUser(ctx context.Context, userID int64) error

	// UpsertUserGroup creates or replaces a mirrored user group row.
	UpsertUserGroup(ctx context.Context, g *UserGroup) error

	// GetUserGroup retrieves a user group by ID.
	GetUserGroup(ctx context.Context, groupID int64) (*UserGroup, error)

	// DeleteUserGroup removes a user group and its membership rows.
	DeleteUserGroup(ctx context.Context, groupID int64) error

	// AddGroupMember adds a user to a group. Idempotent.
	AddGroupMember(ctx context.Context, groupID, userID int64) error

	// RemoveGroupMember removes a user from a group. No-op if absent.
	RemoveGroupMember(ctx context.Context, groupID, userID int64) error

	// ListGroupsForUser returns every active group the user belongs to.
	ListGroupsForUser(ctx context.Context, userID int64) ([]*UserGroup, error)

	// ListGroupMembers returns the users belonging to a group.
	ListGroupMembers(ctx context.Context, groupID int64) ([]*User, error)
}
