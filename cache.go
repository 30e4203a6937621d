package bastion

import "context"

// Cache stores resolved effective permissions. Entries are keyed per
// (tenant, subject, resource); consumers of PermissionChangeEvent
// invalidate by user ID after mutations.
type Cache interface {
	// GetLevel returns a cached effective permission, if present.
	GetLevel(ctx context.Context, tenantID string, subj SubjectRef, res ResourceRef) (Level, bool)

	// SetLevel stores a resolved effective permission.
	SetLevel(ctx context.Context, tenantID string, subj SubjectRef, res ResourceRef, level Level)

	// InvalidateUsers removes all cached levels for the given user IDs.
	InvalidateUsers(ctx context.Context, tenantID string, userIDs []int64)

	// InvalidateTenant removes all cached levels for a tenant.
	InvalidateTenant(ctx context.Context, tenantID string)
}
