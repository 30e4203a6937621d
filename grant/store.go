package grant

import "context"

// Store defines persistence operations for permission grants. The store
// does not open or commit transactions of its own beyond ApplyGrantBatch;
// callers own the ambient transaction boundary.
type Store interface {
	// UpsertGrant replaces any existing grant for the pair. The result
	// reflects the single current permission.
	UpsertGrant(ctx context.Context, g *Grant) error

	// RemoveGrant deletes the grant for the pair. Removing an absent
	// grant is a no-op, not an error.
	RemoveGrant(ctx context.Context, tenantID string, key Key) error

	// GetGrant retrieves the grant for one pair, or a not-found error.
	GetGrant(ctx context.Context, tenantID string, key Key) (*Grant, error)

	// GrantsForSubject returns every grant one subject holds on
	// resources of one kind.
	GrantsForSubject(ctx context.Context, tenantID, subjectKind string, subjectID int64, resourceKind string) ([]*Grant, error)

	// GrantsForResource returns every grant held on one resource,
	// across subject kinds.
	GrantsForResource(ctx context.Context, tenantID, resourceKind string, resourceID int64) ([]*Grant, error)

	// ListGrants returns grants matching the filter.
	ListGrants(ctx context.Context, filter *ListFilter) ([]*Grant, error)

	// ApplyGrantBatch applies the ops all-or-nothing: if any op cannot
	// be applied, no op is. SQL backends run the batch in one
	// transaction; the memory backend validates every op before
	// touching state.
	ApplyGrantBatch(ctx context.Context, tenantID string, ops []Op) error
}
